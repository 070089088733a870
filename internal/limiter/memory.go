package limiter

import (
	"context"
	"sync"
	"time"
)

type memKey struct {
	email string
	ip    string
}

// memStore keeps attempts in process; state is lost on restart.
type memStore struct {
	mu    sync.Mutex
	pairs map[memKey]attempts
}

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Guard {
	return newGuard(&memStore{pairs: make(map[memKey]attempts)},
		Policy{Window: window, MaxFails: maxFails, BlockFor: blockFor})
}

func (s *memStore) load(_ context.Context, email string, ipHash []byte) (attempts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs[memKey{email, string(ipHash)}], nil
}

func (s *memStore) update(_ context.Context, email string, ipHash []byte, fn func(*attempts)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memKey{email, string(ipHash)}
	a := s.pairs[k]
	fn(&a)
	s.pairs[k] = a
	return nil
}

func (s *memStore) clear(_ context.Context, email string, ipHash []byte) error {
	s.mu.Lock()
	delete(s.pairs, memKey{email, string(ipHash)})
	s.mu.Unlock()
	return nil
}
