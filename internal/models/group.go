package models

import "time"

// Group is a roster of children run by one trainer within one branch
type Group struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	BranchID  int64     `json:"branch_id" db:"branch_id"`
	TrainerID int64     `json:"trainer_id" db:"trainer_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GroupView is a group joined with its owners' names
type GroupView struct {
	Group
	BranchName  string `json:"branch_name" db:"branch_name"`
	TrainerName string `json:"trainer_name" db:"trainer_name"`
	Children    int    `json:"children" db:"children_count"`
}

// GroupPatch holds the fields to change on a group
type GroupPatch struct {
	Name      *string
	TrainerID *int64
}

// Empty reports whether the patch changes nothing
func (p GroupPatch) Empty() bool {
	return p.Name == nil && p.TrainerID == nil
}

// Child is a student linked to one parent and one group
type Child struct {
	ID        int64     `json:"id" db:"id"`
	FullName  string    `json:"full_name" db:"full_name"`
	ParentID  int64     `json:"parent_id" db:"parent_id"`
	GroupID   int64     `json:"group_id" db:"group_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChildView is a child with the names along its ownership chain
type ChildView struct {
	Child
	GroupName        string `json:"group_name" db:"group_name"`
	BranchName       string `json:"branch_name" db:"branch_name"`
	TrainerID        int64  `json:"trainer_id" db:"trainer_id"`
	TrainerName      string `json:"trainer_name" db:"trainer_name"`
	ParentName       string `json:"parent_name" db:"parent_name"`
	ParentTelegramID int64  `json:"parent_telegram_id" db:"parent_telegram_id"`
}

// ChildPatch holds the fields to change on a child
type ChildPatch struct {
	FullName *string
	ParentID *int64
	GroupID  *int64
}

// Empty reports whether the patch changes nothing
func (p ChildPatch) Empty() bool {
	return p.FullName == nil && p.ParentID == nil && p.GroupID == nil
}

// GroupFilter narrows group listings
type GroupFilter struct {
	BranchID  *int64
	TrainerID *int64
}

// ChildFilter narrows child listings
type ChildFilter struct {
	GroupID   *int64
	ParentID  *int64
	TrainerID *int64
}

// ParentContact is where to reach a child's parent
type ParentContact struct {
	ChildID   int64  `json:"child_id" db:"child_id"`
	ChildName string `json:"child_name" db:"child_name"`
	ChatID    int64  `json:"chat_id" db:"chat_id"`
}
