package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]store.Snapshot
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		snapshots: make(map[string]store.Snapshot),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveSnapshot stores a copy of snap.
func (s *Store) SaveSnapshot(ctx context.Context, snap store.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot without id: %w", internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[snap.ID]; exists {
		return fmt.Errorf("snapshot %s: %w", snap.ID, internalerr.ErrDuplicate)
	}
	s.snapshots[snap.ID] = copySnapshot(snap)
	return nil
}

// GetSnapshot returns a snapshot by ID.
func (s *Store) GetSnapshot(ctx context.Context, id string) (store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return store.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, internalerr.ErrNotFound)
	}
	return copySnapshot(snap), nil
}

// LatestSnapshot returns the newest snapshot of a named network.
func (s *Store) LatestSnapshot(ctx context.Context, name string) (store.Snapshot, bool, error) {
	infos, err := s.ListSnapshots(ctx, name)
	if err != nil || len(infos) == 0 {
		return store.Snapshot{}, false, err
	}
	snap, err := s.GetSnapshot(ctx, infos[0].ID)
	if err != nil {
		return store.Snapshot{}, false, err
	}
	return snap, true, nil
}

// ListSnapshots lists snapshots newest first.
func (s *Store) ListSnapshots(ctx context.Context, name string) ([]store.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []store.SnapshotInfo
	for _, snap := range s.snapshots {
		if name != "" && snap.Name != name {
			continue
		}
		infos = append(infos, snap.Info())
	}
	store.SortNewestFirst(infos)
	return infos, nil
}

// DeleteSnapshot removes a snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[id]; !ok {
		return fmt.Errorf("snapshot %s: %w", id, internalerr.ErrNotFound)
	}
	delete(s.snapshots, id)
	return nil
}

func copySnapshot(snap store.Snapshot) store.Snapshot {
	snap.Definition = store.CloneDefinition(snap.Definition)
	return snap
}
