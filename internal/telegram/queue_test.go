package telegram

import (
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestChatQueueKeepsOrder(t *testing.T) {
	q := newChatQueue()

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
		wg  sync.WaitGroup
	)
	for i := range 20 {
		for _, chat := range []int64{1, 2} {
			wg.Add(1)
			q.push(chat, func() {
				defer wg.Done()
				// early jobs are the slowest, so any overtaking would show
				time.Sleep(time.Duration(20-i) * 100 * time.Microsecond)
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
			})
		}
	}
	wg.Wait()

	for _, chat := range []int64{1, 2} {
		if len(got[chat]) != 20 {
			t.Fatalf("chat %d ran %d jobs, want 20", chat, len(got[chat]))
		}
		for i, n := range got[chat] {
			if n != i {
				t.Fatalf("chat %d order = %v", chat, got[chat])
			}
		}
	}
}

func TestChatQueueRunsChatsConcurrently(t *testing.T) {
	q := newChatQueue()
	release := make(chan struct{})
	done := make(chan struct{})

	q.push(1, func() { <-release })
	q.push(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a blocked chat held up another chat")
	}
	close(release)
}

func TestChatOf(t *testing.T) {
	tests := []struct {
		name   string
		update tgbotapi.Update
		want   int64
	}{
		{name: "message", update: tgbotapi.Update{Message: privateMessage("hi")}, want: 42},
		{
			name: "callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				From: &tgbotapi.User{ID: 7}, Message: privateMessage("menu"),
			}},
			want: 42,
		},
		{
			name:   "inline callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{From: &tgbotapi.User{ID: 7}}},
			want:   7,
		},
		{name: "empty", update: tgbotapi.Update{}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chatOf(tt.update); got != tt.want {
				t.Errorf("chatOf = %d, want %d", got, tt.want)
			}
		})
	}
}
