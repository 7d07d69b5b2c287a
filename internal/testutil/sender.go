package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Message is one text captured by a Sender
type Message struct {
	ChatID int64
	Text   string
}

// Sender records every message instead of delivering it. Chats listed in
// Fail return an error.
type Sender struct {
	mu       sync.Mutex
	Fail     map[int64]bool
	messages []Message
}

// Send implements notify.Sender
func (s *Sender) Send(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail[chatID] {
		return errors.New("chat unreachable")
	}
	s.messages = append(s.messages, Message{ChatID: chatID, Text: text})
	return nil
}

// Messages returns the captured messages
func (s *Sender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// To returns the texts sent to one chat
func (s *Sender) To(chatID int64) []string {
	var out []string
	for _, m := range s.Messages() {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

// Contains reports whether any message to chatID contains substr
func (s *Sender) Contains(chatID int64, substr string) bool {
	for _, text := range s.To(chatID) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Reset drops captured messages
func (s *Sender) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}
