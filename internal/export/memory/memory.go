package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "wagebook/internal/export"
)

// Store keeps exported registers in memory. Used in development and tests
// when no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items []ports.Register
}

func New() *Store {
	return &Store{}
}

var _ ports.RegisterWriter = (*Store)(nil)

// WriteRegister stores the register and returns a synthetic reference.
func (s *Store) WriteRegister(_ context.Context, r ports.Register) (string, error) {
	if len(r.Rows) == 0 {
		return "", errors.New("empty register")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Registers returns a copy of everything written so far.
func (s *Store) Registers() []ports.Register {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Register(nil), s.items...)
}
