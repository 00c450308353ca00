package progress

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/sebuszqo/SledHockey/internal/goal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Mode string

const (
	ModeCompact  Mode = "compact"
	ModeFull     Mode = "full"
	ModeFloating Mode = "floating"
	ModeEmbedded Mode = "embedded"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeFull, nil
	case ModeCompact, ModeFull, ModeFloating, ModeEmbedded:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown progress display mode %q", s)
}

//go:embed widget.html.tmpl
var widgetSource string

var widgetTemplate = template.Must(template.New("widget").Parse(widgetSource))

var printer = message.NewPrinter(language.AmericanEnglish)

// View is what the widget templates render. BarWidth is clamped to [0, 100];
// PercentLabel shows the percentage as reported, so an over-funded goal reads 150%.
type View struct {
	Mode          Mode
	Name          string
	Raised        string
	Target        string
	Percent       float64
	PercentLabel  string
	BarWidth      string
	DaysRemaining int
	DaysLabel     string
	Funded        bool
}

func NewView(p goal.Progress, mode Mode) View {
	return View{
		Mode:          mode,
		Name:          p.Name,
		Raised:        FormatCurrency(p.CurrentAmount),
		Target:        FormatCurrency(p.TargetAmount),
		Percent:       p.PercentageComplete,
		PercentLabel:  FormatPercent(p.PercentageComplete),
		BarWidth:      fmt.Sprintf("%.2f", BarWidth(p.PercentageComplete)),
		DaysRemaining: p.DaysRemaining,
		DaysLabel:     daysLabel(p.DaysRemaining),
		Funded:        p.PercentageComplete >= 100,
	}
}

func BarWidth(percent float64) float64 {
	if math.IsNaN(percent) || percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func FormatPercent(percent float64) string {
	if math.IsNaN(percent) || math.IsInf(percent, 0) {
		return "0%"
	}
	return printer.Sprintf("%d%%", int64(math.Round(percent)))
}

// FormatCurrency renders dollars with thousands grouping. Cents are shown only
// when the amount is not whole.
func FormatCurrency(amount float64) string {
	cents := int64(math.Round(amount * 100))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	s := sign + "$" + printer.Sprintf("%d", cents/100)
	if frac := cents % 100; frac != 0 {
		s += fmt.Sprintf(".%02d", frac)
	}
	return s
}

func daysLabel(days int) string {
	switch {
	case days <= 0:
		return "Final day"
	case days == 1:
		return "1 day left"
	}
	return printer.Sprintf("%d days left", days)
}

// Render writes the HTML fragment for the given display mode.
func Render(w io.Writer, p goal.Progress, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if mode == "" {
		mode = ModeFull
	}
	return widgetTemplate.ExecuteTemplate(w, string(mode), NewView(p, mode))
}
