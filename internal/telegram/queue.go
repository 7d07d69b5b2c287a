package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// chatQueue runs jobs of one chat in arrival order, one at a time. Jobs of
// different chats run concurrently.
type chatQueue struct {
	mu sync.Mutex
	// a chat is present while a worker drains it
	pending map[int64][]func()
}

func newChatQueue() *chatQueue {
	return &chatQueue{pending: make(map[int64][]func())}
}

// push queues job behind earlier jobs of chatID
func (q *chatQueue) push(chatID int64, job func()) {
	q.mu.Lock()
	jobs, running := q.pending[chatID]
	q.pending[chatID] = append(jobs, job)
	q.mu.Unlock()

	if !running {
		go q.drain(chatID)
	}
}

func (q *chatQueue) drain(chatID int64) {
	for {
		q.mu.Lock()
		jobs := q.pending[chatID]
		if len(jobs) == 0 {
			delete(q.pending, chatID)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[chatID] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// chatOf returns the chat an update belongs to, falling back to the sender
func chatOf(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	case update.SentFrom() != nil:
		return update.SentFrom().ID
	}
	return 0
}
