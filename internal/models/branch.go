package models

import "time"

// Branch is a physical academy location
type Branch struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Address   *string   `json:"address" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AddressOrDash returns the address, or "-" when none is stored
func (b *Branch) AddressOrDash() string {
	if b.Address == nil || *b.Address == "" {
		return "-"
	}
	return *b.Address
}

// BranchPatch holds the fields to change on a branch. ClearAddress wins over Address.
type BranchPatch struct {
	Name         *string
	Address      *string
	ClearAddress bool
}

// Empty reports whether the patch changes nothing
func (p BranchPatch) Empty() bool {
	return p.Name == nil && p.Address == nil && !p.ClearAddress
}

// Trainer is a staff profile attached to one branch. UserID stays nil until
// the trainer registers in the bot.
type Trainer struct {
	ID        int64     `json:"id" db:"id"`
	FullName  string    `json:"full_name" db:"full_name"`
	BranchID  int64     `json:"branch_id" db:"branch_id"`
	UserID    *int64    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsLinked reports whether the trainer has a registered account
func (t *Trainer) IsLinked() bool {
	return t.UserID != nil
}

// TrainerView is a trainer with its branch name and group count
type TrainerView struct {
	Trainer
	BranchName string `json:"branch_name" db:"branch_name"`
	Groups     int    `json:"groups" db:"groups_count"`
}

// TrainerPatch holds the fields to change on a trainer
type TrainerPatch struct {
	FullName *string
	BranchID *int64
}

// Empty reports whether the patch changes nothing
func (p TrainerPatch) Empty() bool {
	return p.FullName == nil && p.BranchID == nil
}
