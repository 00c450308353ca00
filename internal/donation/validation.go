package donation

import (
	"fmt"
	"github.com/sebuszqo/SledHockey/internal/payment"
	"github.com/sebuszqo/SledHockey/internal/validation"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultPreset    = 25.0
	DefaultRecurring = true
)

// Presets are in currency units, not cents.
var Presets = []float64{5, 10, 25, 50, 100}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	MsgInvalidAmount = "Please enter a valid donation amount"
	MsgNameRequired  = "Name is required"
	MsgInvalidEmail  = "Please enter a valid email address"
)

func IsPreset(amount float64) bool {
	for _, p := range Presets {
		if p == amount {
			return true
		}
	}
	return false
}

// ParseAmount parses a free-form custom amount. ok is false for blank,
// non-numeric or non-finite input, and for amounts under one cent.
func ParseAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	raw = strings.TrimPrefix(raw, "$")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || !chargeable(v) {
		return 0, false
	}
	return v, true
}

// chargeable reports whether amount is still positive once rounded to cents.
func chargeable(amount float64) bool {
	return payment.ToCents(amount) >= 1
}

// DisplayAmount is the custom amount when it parses to a positive number, otherwise the preset.
func DisplayAmount(preset float64, custom string) float64 {
	if v, ok := ParseAmount(custom); ok {
		return v
	}
	return preset
}

// ValidateAmountInput checks the amount step. A custom amount that is present
// but not a positive number blocks advancement even when a preset is selected.
func ValidateAmountInput(preset float64, custom string) error {
	if strings.TrimSpace(custom) != "" {
		if _, ok := ParseAmount(custom); !ok {
			return validation.NewError("amount", MsgInvalidAmount)
		}
		return nil
	}
	if preset <= 0 {
		return validation.NewError("amount", MsgInvalidAmount)
	}
	return nil
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateDonor checks the required donor fields. Optional fields pass through.
func ValidateDonor(info DonorInfo) error {
	errs := &validation.Errors{}
	if strings.TrimSpace(info.Name) == "" {
		errs.Add(validation.NewError("name", MsgNameRequired))
	}
	if !IsValidEmail(info.Email) {
		errs.Add(validation.NewError("email", MsgInvalidEmail))
	}
	return errs.ErrOrNil()
}

// ValidateRequest applies the server-side rules for intent creation.
func ValidateRequest(req CreatePaymentRequest, maxAmount float64) error {
	errs := &validation.Errors{}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || !chargeable(req.Amount) {
		errs.Add(validation.NewError("amount", MsgInvalidAmount))
	} else if maxAmount > 0 && req.Amount > maxAmount {
		errs.Add(validation.NewError("amount", fmt.Sprintf("Donation amount may not exceed %.2f", maxAmount)))
	}

	switch req.DonationType {
	case "":
	case TypeRecurring, TypeOneTime:
		if req.DonationType != TypeFor(req.IsRecurring) {
			errs.Add(validation.NewError("donationType", "Donation type does not match the recurring flag"))
		}
	default:
		errs.Add(validation.NewError("donationType", "Donation type must be recurring or one-time"))
	}

	if err := ValidateDonor(req.DonorInfo); err != nil {
		errs.Add(err)
	}
	return errs.ErrOrNil()
}
