package handlers

import (
	"sync"
	"testing"
)

func TestChatLocks(t *testing.T) {
	tests := []struct {
		name string
		keys [][2]int64
	}{
		{name: "one chat", keys: [][2]int64{{1, 1}}},
		{name: "same user, two chats", keys: [][2]int64{{1, 1}, {1, 2}}},
		{name: "many users", keys: [][2]int64{{1, 1}, {2, 2}, {3, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newChatLocks()
			counters := make([]int, len(tt.keys))

			var wg sync.WaitGroup
			for i, key := range tt.keys {
				for range 50 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						unlock := l.lock(key[0], key[1])
						defer unlock()
						// guarded only by the chat lock
						counters[i]++
					}()
				}
			}
			wg.Wait()

			for i, n := range counters {
				if n != 50 {
					t.Errorf("key %v ran %d times, want 50", tt.keys[i], n)
				}
			}
			if held := l.held(); held != 0 {
				t.Errorf("%d keys left behind", held)
			}
		})
	}
}
