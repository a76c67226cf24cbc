package store

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

// Store persists snapshots of uncompiled networks. Join trees are derived
// data and are never stored.
type Store interface {
	Close() error

	// SaveSnapshot stores a snapshot; its ID must be unique.
	SaveSnapshot(ctx context.Context, s Snapshot) error
	// GetSnapshot loads a snapshot by ID (internalerr.ErrNotFound if absent).
	GetSnapshot(ctx context.Context, id string) (Snapshot, error)
	// LatestSnapshot returns the most recent snapshot of a named network.
	LatestSnapshot(ctx context.Context, name string) (Snapshot, bool, error)
	// ListSnapshots lists snapshots newest first; an empty name lists all.
	ListSnapshots(ctx context.Context, name string) ([]SnapshotInfo, error)
	// DeleteSnapshot removes a snapshot (internalerr.ErrNotFound if absent).
	DeleteSnapshot(ctx context.Context, id string) error
}

// Snapshot is a stored network definition
type Snapshot struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	Definition network.Definition
}

// SnapshotInfo is the listing form of a snapshot
type SnapshotInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Variables int
}

// Info returns the listing form of s.
func (s Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		Variables: len(s.Definition.Variables),
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new ULID; IDs sort by creation time.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// NewSnapshot wraps a definition in a snapshot with a fresh ID.
func NewSnapshot(def network.Definition) Snapshot {
	return Snapshot{
		ID:         NewID(),
		Name:       def.Name,
		CreatedAt:  time.Now().UTC(),
		Definition: CloneDefinition(def),
	}
}

// SortNewestFirst orders listings by creation time, then ID, descending.
func SortNewestFirst(infos []SnapshotInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID > infos[j].ID
	})
}

// CloneDefinition deep-copies a definition.
func CloneDefinition(def network.Definition) network.Definition {
	out := network.Definition{Name: def.Name}
	if def.Variables == nil {
		return out
	}
	out.Variables = make([]network.VariableDef, len(def.Variables))
	for i, v := range def.Variables {
		c := v
		c.States = append([]string(nil), v.States...)
		c.Parents = append([]string(nil), v.Parents...)
		if v.Table != nil {
			c.Table = make([][]float64, len(v.Table))
			for r, row := range v.Table {
				c.Table[r] = append([]float64(nil), row...)
			}
		}
		if v.Rows != nil {
			c.Rows = make([]network.RowDef, len(v.Rows))
			for r, row := range v.Rows {
				c.Rows[r] = network.RowDef{
					When:  append([]string(nil), row.When...),
					Probs: append([]float64(nil), row.Probs...),
				}
			}
		}
		if v.EquationOptions != nil {
			eo := *v.EquationOptions
			c.EquationOptions = &eo
		}
		out.Variables[i] = c
	}
	return out
}
