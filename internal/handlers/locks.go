package handlers

import "sync"

type chatKey struct {
	userID int64
	chatID int64
}

type chatLock struct {
	mu      sync.Mutex
	waiters int
}

// chatLocks serialises requests of one user in one chat. Entries are dropped
// once nobody holds or waits for them.
type chatLocks struct {
	mu    sync.Mutex
	locks map[chatKey]*chatLock
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[chatKey]*chatLock)}
}

// lock blocks until the key is free and returns the matching unlock
func (l *chatLocks) lock(userID, chatID int64) func() {
	key := chatKey{userID: userID, chatID: chatID}

	l.mu.Lock()
	cl, ok := l.locks[key]
	if !ok {
		cl = &chatLock{}
		l.locks[key] = cl
	}
	cl.waiters++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.waiters--
		if cl.waiters == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// held returns the number of keys in use
func (l *chatLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
