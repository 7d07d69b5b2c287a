package conversation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/academybot/internal/models"
)

// SkipKeyword leaves an optional value unset
const SkipKeyword = "skip"

// IsSkip reports whether the user asked to skip the step
func IsSkip(text string) bool {
	t := strings.TrimSpace(text)
	return strings.EqualFold(t, SkipKeyword) || t == "-"
}

// RequiredText trims input and rejects empty text
func RequiredText(text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", models.Invalid("The answer cannot be empty.")
	}
	return t, nil
}

// OptionalText returns nil when the user skipped the step
func OptionalText(text string) *string {
	if IsSkip(text) {
		return nil
	}
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	return &t
}

// ParseAmount reads a positive sum such as "150 000" or "99,50"
func ParseAmount(text string) (decimal.Decimal, error) {
	t := strings.Join(strings.Fields(text), "")
	t = strings.ReplaceAll(t, ",", ".")
	amount, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Zero, models.Invalid("The amount must be a number, for example 150000.")
	}
	if !amount.IsPositive() {
		return decimal.Zero, models.Invalid("The amount must be greater than zero.")
	}
	return amount, nil
}

// ParseMonth accepts a billing month as YYYY-MM
func ParseMonth(text string) (string, error) {
	t := strings.TrimSpace(text)
	if _, err := models.ParseMonthYear(t); err != nil {
		return "", err
	}
	return t, nil
}
