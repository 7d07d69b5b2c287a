package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttendanceWindow is the trailing window used for attendance rates
const AttendanceWindow = 30 * 24 * time.Hour

// AttendanceStats counts marks for a child within a window
type AttendanceStats struct {
	Total   int `json:"total" db:"total"`
	Present int `json:"present" db:"present"`
}

// Rate returns the share of present marks in percent. No sessions means 0%.
func (s AttendanceStats) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Present) / float64(s.Total) * 100
}

// MoneyTotals splits collected money by who holds it
type MoneyTotals struct {
	WithTrainer decimal.Decimal `json:"with_trainer" db:"with_trainer"`
	InCashbox   decimal.Decimal `json:"in_cashbox" db:"in_cashbox"`
}

// Total returns all collected money
func (m MoneyTotals) Total() decimal.Decimal {
	return m.WithTrainer.Add(m.InCashbox)
}

// PaymentFilter scopes payment totals. Empty means academy-wide.
type PaymentFilter struct {
	ChildID   *int64
	TrainerID *int64
}

// RollupBy selects the grouping of a rollup
type RollupBy string

const (
	RollupByBranch  RollupBy = "branch"
	RollupByTrainer RollupBy = "trainer"
)

// RollupRow aggregates sessions and money for one branch or trainer
type RollupRow struct {
	Name      string          `json:"name" db:"name"`
	Sessions  int             `json:"sessions" db:"sessions"`
	Trainings int             `json:"trainings" db:"trainings"`
	Games     int             `json:"games" db:"games"`
	Collected decimal.Decimal `json:"collected" db:"collected"`
}

// BranchDay is one branch's line in the daily report
type BranchDay struct {
	BranchName string          `json:"branch_name" db:"branch_name"`
	Sessions   int             `json:"sessions" db:"sessions"`
	Present    int             `json:"present" db:"present"`
	Marked     int             `json:"marked" db:"marked"`
	Received   decimal.Decimal `json:"received" db:"received"`
	HandedIn   decimal.Decimal `json:"handed_in" db:"handed_in"`
}

// DailyReport is the digest sent to head trainers once a day
type DailyReport struct {
	Day       time.Time     `json:"day"`
	Sessions  []SessionView `json:"sessions"`
	Trainings int           `json:"trainings"`
	Games     int           `json:"games"`
	Branches  []BranchDay   `json:"branches"`
	Unclosed  []SessionView `json:"unclosed"`
}

// EntityKind names an entity that can be deleted with a cascade
type EntityKind string

const (
	KindBranch  EntityKind = "branch"
	KindTrainer EntityKind = "trainer"
	KindGroup   EntityKind = "group"
	KindChild   EntityKind = "child"
)

// DeleteImpact counts the rows a cascade delete would remove besides the entity itself
type DeleteImpact struct {
	Trainers   int `json:"trainers" db:"trainers"`
	Groups     int `json:"groups" db:"groups"`
	Children   int `json:"children" db:"children"`
	Sessions   int `json:"sessions" db:"sessions"`
	Attendance int `json:"attendance" db:"attendance"`
	Payments   int `json:"payments" db:"payments"`
}

// None reports whether nothing else would be removed
func (d DeleteImpact) None() bool {
	return d == DeleteImpact{}
}

// LogEntry is an append-only audit record
type LogEntry struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TrainerStats summarises a trainer's month
type TrainerStats struct {
	Sessions  int         `json:"sessions"`
	Trainings int         `json:"trainings"`
	Games     int         `json:"games"`
	Groups    int         `json:"groups"`
	Children  int         `json:"children"`
	Money     MoneyTotals `json:"money"`
}
