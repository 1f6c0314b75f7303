package auth

import (
	"strings"
	"sync"
	"time"
)

// pendingLogin is what the start step remembers until Google calls back.
type pendingLogin struct {
	expires  time.Time
	returnTo string
}

// stateStore keeps OAuth state values for one round trip. Each value is
// accepted at most once.
type stateStore struct {
	mu    sync.Mutex
	items map[string]pendingLogin
	now   func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]pendingLogin), now: time.Now}
}

func (s *stateStore) put(state string, login pendingLogin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.items {
		if now.After(v.expires) {
			delete(s.items, k)
		}
	}
	s.items[state] = login
}

func (s *stateStore) consume(state string) (pendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.items[state]
	if !ok {
		return pendingLogin{}, false
	}
	delete(s.items, state)
	if s.now().After(login.expires) {
		return pendingLogin{}, false
	}
	return login, true
}

func (s *stateStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// safeReturnTo accepts only same-origin absolute paths such as
// "/documents/42". Anything else is dropped.
func safeReturnTo(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	return raw
}
