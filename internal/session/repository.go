// Package session keeps at most one in-progress dialog per owner and
// routes each inbound line to it.
package session

import (
	"context"
	"sync"

	"remindbot/internal/dialog"
)

// Repository stores sessions by owner id.
type Repository interface {
	Get(ctx context.Context, ownerID string) (dialog.Session, bool, error)
	Put(ctx context.Context, s dialog.Session) error
	Delete(ctx context.Context, ownerID string) error
}

// MemoryRepository is the default Repository. Sessions do not survive a
// restart.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]dialog.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: map[string]dialog.Session{}}
}

func (r *MemoryRepository) Get(_ context.Context, ownerID string) (dialog.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[ownerID]
	return s, ok, nil
}

func (r *MemoryRepository) Put(_ context.Context, s dialog.Session) error {
	r.mu.Lock()
	r.m[s.Owner.ID] = s
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, ownerID string) error {
	r.mu.Lock()
	delete(r.m, ownerID)
	r.mu.Unlock()
	return nil
}

// Len reports how many sessions are open.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
