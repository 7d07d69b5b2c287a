package models

import "time"

// SessionType distinguishes trainings from games
type SessionType string

const (
	SessionTraining SessionType = "training"
	SessionGame     SessionType = "game"
)

// Valid reports whether t is a known session type
func (t SessionType) Valid() bool {
	return t == SessionTraining || t == SessionGame
}

// Title returns the display name of the session type
func (t SessionType) Title() string {
	if t == SessionGame {
		return "Game"
	}
	return "Training"
}

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	SessionStarted   SessionStatus = "started"
	SessionCompleted SessionStatus = "completed"
)

// Location is a shared geolocation
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Session is one training or game run by a trainer for a group
type Session struct {
	ID        int64         `json:"id" db:"id"`
	Type      SessionType   `json:"type" db:"type"`
	TrainerID int64         `json:"trainer_id" db:"trainer_id"`
	GroupID   int64         `json:"group_id" db:"group_id"`
	StartTime time.Time     `json:"start_time" db:"start_time"`
	EndTime   *time.Time    `json:"end_time" db:"end_time"`
	Latitude  *float64      `json:"latitude" db:"latitude"`
	Longitude *float64      `json:"longitude" db:"longitude"`
	Status    SessionStatus `json:"status" db:"status"`
}

// IsActive returns true while the session has not been closed
func (s *Session) IsActive() bool {
	return s.Status == SessionStarted
}

// SessionView is a session with group, branch and trainer names
type SessionView struct {
	Session
	GroupName   string `json:"group_name" db:"group_name"`
	BranchName  string `json:"branch_name" db:"branch_name"`
	TrainerName string `json:"trainer_name" db:"trainer_name"`
}

// AttendanceStatus is a per-session presence mark
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid reports whether s is a known attendance status
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// Attendance links one session to one child
type Attendance struct {
	ID        int64            `json:"id" db:"id"`
	SessionID int64            `json:"session_id" db:"session_id"`
	ChildID   int64            `json:"child_id" db:"child_id"`
	Status    AttendanceStatus `json:"status" db:"status"`
	MarkedAt  time.Time        `json:"marked_at" db:"marked_at"`
}

// AttendanceRecord is one mark in a child's history
type AttendanceRecord struct {
	Status      AttendanceStatus `json:"status" db:"status"`
	SessionType SessionType      `json:"session_type" db:"session_type"`
	StartTime   time.Time        `json:"start_time" db:"start_time"`
	GroupName   string           `json:"group_name" db:"group_name"`
}

// RollCallEntry is a child of the session's group with its current mark, if any
type RollCallEntry struct {
	ChildID  int64   `json:"child_id" db:"child_id"`
	FullName string  `json:"full_name" db:"full_name"`
	Status   *string `json:"status" db:"status"`
}
