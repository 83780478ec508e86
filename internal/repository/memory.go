package repository

import (
	"context"
	"sync"
	"time"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

type memoryEntry struct {
	snapshot  entity.Snapshot
	expiresAt time.Time
}

type memorySession struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemorySessionRepository keeps snapshots in process. Expired entries are
// dropped on read.
func NewMemorySessionRepository(ttl time.Duration) SessionRepository {
	return newMemorySessionRepository(ttl, time.Now)
}

func newMemorySessionRepository(ttl time.Duration, now func() time.Time) *memorySession {
	return &memorySession{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]memoryEntry),
	}
}

func (that *memorySession) Save(_ context.Context, snapshot *entity.Snapshot) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry := memoryEntry{snapshot: *snapshot}
	entry.snapshot.Round = snapshot.Round.Clone()

	if that.ttl > 0 {
		entry.expiresAt = that.now().Add(that.ttl)
	}

	that.entries[snapshot.SessionID] = entry

	return nil
}

func (that *memorySession) GetByID(_ context.Context, id string) (*entity.Snapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry, ok := that.entries[id]
	if !ok {
		return nil, apperror.ErrSessionNotFound
	}

	if !entry.expiresAt.IsZero() && !that.now().Before(entry.expiresAt) {
		delete(that.entries, id)
		return nil, apperror.ErrSessionNotFound
	}

	snapshot := entry.snapshot
	snapshot.Round = entry.snapshot.Round.Clone()

	return &snapshot, nil
}

func (that *memorySession) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.entries, id)

	return nil
}
