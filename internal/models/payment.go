package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tells who holds the money
type PaymentStatus string

const (
	PaymentWithTrainer PaymentStatus = "with_trainer"
	PaymentInCashbox   PaymentStatus = "in_cashbox"
)

// Payment is a sum collected from a child's family for one billing period
type Payment struct {
	ID          int64           `json:"id" db:"id"`
	ChildID     int64           `json:"child_id" db:"child_id"`
	TrainerID   int64           `json:"trainer_id" db:"trainer_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Status      PaymentStatus   `json:"status" db:"status"`
	PaymentDate time.Time       `json:"payment_date" db:"payment_date"`
	CashboxDate *time.Time      `json:"cashbox_date" db:"cashbox_date"`
	MonthYear   string          `json:"month_year" db:"month_year"`
}

// PaymentView is a payment with the child and trainer names
type PaymentView struct {
	Payment
	ChildName   string `json:"child_name" db:"child_name"`
	TrainerName string `json:"trainer_name" db:"trainer_name"`
}

// TrainerCash is the money a trainer still holds
type TrainerCash struct {
	TrainerID   int64           `json:"trainer_id" db:"trainer_id"`
	TrainerName string          `json:"trainer_name" db:"trainer_name"`
	Payments    int             `json:"payments" db:"payments"`
	Total       decimal.Decimal `json:"total" db:"total"`
}

const monthLayout = "2006-01"

// ParseMonthYear validates a "YYYY-MM" billing period
func ParseMonthYear(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, Invalid("The month must look like 2025-01.")
	}
	return t, nil
}

// MonthLabel renders "2025-01" as "January 2025"
func MonthLabel(monthYear string) string {
	t, err := ParseMonthYear(monthYear)
	if err != nil {
		return monthYear
	}
	return t.Format("January 2006")
}

// FormatMoney renders an amount without fraction digits and with spaces
// between thousands, e.g. "150 000".
func FormatMoney(d decimal.Decimal) string {
	s := d.Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
