package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in a map. It is safe for concurrent use.
//
// With a TTL, a background goroutine drops snapshots whose GeneratedAt is
// older than the TTL; call Stop to end it.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	ttl       time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemoryStore creates a store that keeps snapshots until overwritten.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

// NewMemoryStoreWithTTL creates a store that sweeps expired snapshots every
// interval (one minute when interval <= 0). A ttl <= 0 disables expiry.
func NewMemoryStoreWithTTL(ttl, interval time.Duration) *MemoryStore {
	s := NewMemoryStore()
	if ttl <= 0 {
		return s
	}
	if interval <= 0 {
		interval = time.Minute
	}

	s.ttl = ttl
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.sweepEvery(interval)
	return s
}

// Stop ends the sweeper and waits for it. Safe to call more than once and on
// stores without a TTL.
func (s *MemoryStore) Stop() {
	if s.stop == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
}

func (s *MemoryStore) sweepEvery(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, snap := range s.snapshots {
		if now.Sub(snap.GeneratedAt) > s.ttl {
			delete(s.snapshots, id)
		}
	}
}

// Put replaces the snapshot stored for snapshot.RunID.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if err := ValidateRunID(snapshot.RunID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshots[snapshot.RunID] = snapshot
	s.mu.Unlock()
	return nil
}

// GetLatest returns the snapshot for runID, if any.
func (s *MemoryStore) GetLatest(ctx context.Context, runID string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[runID]
	return snap, ok, nil
}

// Len reports how many runs have a snapshot.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
