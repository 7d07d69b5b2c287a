// Package conversation keeps the per-user state of multi-step dialogs.
//
// A Session is loaded once for every inbound update, handed to the step
// handler and then saved, or cleared when the dialog ends.
package conversation

import (
	"context"
	"strconv"
	"time"
)

// Step names the point a dialog has reached. The zero value is idle.
type Step string

// StepIdle means no dialog is in progress
const StepIdle Step = ""

// Session is the dialog state of one user in one chat
type Session struct {
	UserID    int64             `json:"user_id"`
	ChatID    int64             `json:"chat_id"`
	Step      Step              `json:"step"`
	Data      map[string]string `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New returns an idle session
func New(userID, chatID int64) *Session {
	return &Session{UserID: userID, ChatID: chatID, Data: map[string]string{}}
}

// Idle reports whether no dialog is running
func (s *Session) Idle() bool {
	return s.Step == StepIdle
}

// Begin starts a dialog at step, dropping whatever the previous one collected.
func (s *Session) Begin(step Step) {
	s.Step = step
	s.Data = map[string]string{}
}

// Advance moves to the next step keeping collected values
func (s *Session) Advance(step Step) {
	s.Step = step
}

// Set stores a scratch value
func (s *Session) Set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
}

// SetInt64 stores an id as a scratch value
func (s *Session) SetInt64(key string, v int64) {
	s.Set(key, strconv.FormatInt(v, 10))
}

// Get returns a scratch value or ""
func (s *Session) Get(key string) string {
	return s.Data[key]
}

// Has reports whether a scratch value was collected
func (s *Session) Has(key string) bool {
	_, ok := s.Data[key]
	return ok
}

// Int64 returns a scratch id
func (s *Session) Int64(key string) (int64, bool) {
	v, ok := s.Data[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Clear ends the dialog
func (s *Session) Clear() {
	s.Step = StepIdle
	s.Data = map[string]string{}
}

// Store persists sessions keyed by (user, chat)
type Store interface {
	// Load returns the stored session or a fresh idle one.
	Load(ctx context.Context, userID, chatID int64) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context, userID, chatID int64) error
}
