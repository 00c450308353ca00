package intake

import (
	"time"

	"github.com/sebuszqo/SledHockey/internal/config"
)

type Layout string

const (
	// LayoutThreeStep collects the amount and the donor on separate steps.
	LayoutThreeStep Layout = "three-step"
	// LayoutTwoStep collects the amount and the donor together on the info step.
	LayoutTwoStep Layout = "two-step"
)

const (
	DefaultSuccessDelay   = 1500 * time.Millisecond
	DefaultAutoCloseDelay = 3 * time.Second
)

// Presentation parameterizes a Flow for one place the donation form is shown.
// AutoCloseDelay of zero means the completion callback runs as soon as the
// success step is reached.
type Presentation struct {
	Name           string
	Layout         Layout
	Appearance     config.Appearance
	SuccessDelay   time.Duration
	AutoCloseDelay time.Duration
}

func (p Presentation) firstStep() Step {
	if p.Layout == LayoutTwoStep {
		return StepInfo
	}
	return StepAmount
}

func Modal(appearance config.Appearance) Presentation {
	return Presentation{
		Name:           "modal",
		Layout:         LayoutThreeStep,
		Appearance:     appearance,
		SuccessDelay:   DefaultSuccessDelay,
		AutoCloseDelay: DefaultAutoCloseDelay,
	}
}

func Embedded(appearance config.Appearance) Presentation {
	return Presentation{
		Name:         "embedded",
		Layout:       LayoutTwoStep,
		Appearance:   appearance,
		SuccessDelay: DefaultSuccessDelay,
	}
}

func Floating(appearance config.Appearance) Presentation {
	return Presentation{
		Name:           "floating",
		Layout:         LayoutThreeStep,
		Appearance:     appearance,
		SuccessDelay:   DefaultSuccessDelay,
		AutoCloseDelay: DefaultAutoCloseDelay,
	}
}

// PresentationByName resolves a presentation and its configured appearance.
func PresentationByName(name string, appearances config.AppearanceSet) (Presentation, bool) {
	appearance := appearances.For(name)
	switch name {
	case "modal":
		return Modal(appearance), true
	case "embedded":
		return Embedded(appearance), true
	case "floating":
		return Floating(appearance), true
	}
	return Presentation{}, false
}
