package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
	"github.com/cognicore/beliefnet/pkg/beliefnet/store"
)

func sprinkler() network.Definition {
	return network.Definition{
		Name: "sprinkler",
		Variables: []network.VariableDef{
			{Name: "Rain", States: []string{"yes", "no"}, Table: [][]float64{{0.2, 0.8}}},
			{Name: "Wet", States: []string{"yes", "no"}, Parents: []string{"Rain"},
				Table: [][]float64{{0.9, 0.1}, {0.1, 0.9}}},
		},
	}
}

func TestMemStoreSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	first := store.NewSnapshot(sprinkler())
	second := store.NewSnapshot(sprinkler())
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	if err := st.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := st.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := st.SaveSnapshot(ctx, first); !errors.Is(err, internalerr.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := st.GetSnapshot(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(got.Definition.Variables) != 2 || got.Definition.Variables[1].Parents[0] != "Rain" {
		t.Errorf("unexpected definition: %+v", got.Definition)
	}

	latest, ok, err := st.LatestSnapshot(ctx, "sprinkler")
	if err != nil || !ok {
		t.Fatalf("LatestSnapshot: ok=%v err=%v", ok, err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest = %s, want %s", latest.ID, second.ID)
	}

	if _, ok, err := st.LatestSnapshot(ctx, "other"); ok || err != nil {
		t.Errorf("expected no snapshot for unknown name, ok=%v err=%v", ok, err)
	}

	infos, err := st.ListSnapshots(ctx, "")
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(infos) != 2 || infos[0].ID != second.ID || infos[0].Variables != 2 {
		t.Errorf("unexpected listing: %+v", infos)
	}

	if err := st.DeleteSnapshot(ctx, first.ID); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := st.GetSnapshot(ctx, first.ID); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.DeleteSnapshot(ctx, first.ID); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := New()

	snap := store.NewSnapshot(sprinkler())
	if err := st.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, _ := st.GetSnapshot(ctx, snap.ID)
	got.Definition.Variables[0].Table[0][0] = 0.5

	again, _ := st.GetSnapshot(ctx, snap.ID)
	if again.Definition.Variables[0].Table[0][0] != 0.2 {
		t.Errorf("stored snapshot was modified through a returned copy")
	}
}

func TestMemStoreRejectsEmptyID(t *testing.T) {
	st := New()
	if err := st.SaveSnapshot(context.Background(), store.Snapshot{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
