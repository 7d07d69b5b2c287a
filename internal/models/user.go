package models

import (
	"strings"
	"time"
)

// Role is the fixed role a user is registered with
type Role string

const (
	RoleHeadTrainer Role = "head_trainer"
	RoleTrainer     Role = "trainer"
	RoleParent      Role = "parent"
	RoleCashier     Role = "cashier"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleHeadTrainer, RoleTrainer, RoleParent, RoleCashier:
		return true
	}
	return false
}

// Title returns a human readable role name
func (r Role) Title() string {
	switch r {
	case RoleHeadTrainer:
		return "Head trainer"
	case RoleTrainer:
		return "Trainer"
	case RoleParent:
		return "Parent"
	case RoleCashier:
		return "Cashier"
	default:
		return string(r)
	}
}

// User represents a registered Telegram user
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Username   string    `json:"username" db:"username"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Phone      *string   `json:"phone" db:"phone"`
	Role       Role      `json:"role" db:"role"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// FullName returns the user's full name
func (u *User) FullName() string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// DisplayName returns the full name with the username appended when known
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.FullName() + " (@" + u.Username + ")"
	}
	return u.FullName()
}

// SplitFullName splits "First Middle Last" into a first name and the rest.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
