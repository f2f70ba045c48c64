package memory

import (
	"context"
	"testing"
	"time"

	"github.com/orbitalflow/engine/internal/orcherr"
)

func newSubsystem() *Subsystem {
	return New(map[Tier]Backend{
		TierWorking:  NewInMemoryBackend(),
		TierSemantic: NewInMemoryBackend(),
	})
}

func TestStoreRejectsMissingScope(t *testing.T) {
	s := newSubsystem()
	err := s.Store(context.Background(), &Entry{Tier: TierWorking})
	if !orcherr.Is(err, orcherr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStoreRejectsUnconfiguredTier(t *testing.T) {
	s := newSubsystem()
	err := s.Store(context.Background(), &Entry{OrgID: "o1", UserID: "u1", Tier: TierEpisodic})
	if !orcherr.Is(err, orcherr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStoreThenRetrieveRoundTrips(t *testing.T) {
	s := newSubsystem()
	e := &Entry{ID: "e1", OrgID: "o1", UserID: "u1", Tier: TierWorking, Content: map[string]any{"text": "hi"}}
	if err := s.Store(context.Background(), e); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := s.Retrieve(context.Background(), "o1", "u1", TierWorking, "e1")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.Content["text"] != "hi" {
		t.Errorf("Content = %v", got.Content)
	}
	if got.DecayScore != 1.0 {
		t.Errorf("DecayScore = %v, want 1.0", got.DecayScore)
	}
}

func TestSearchFiltersByOrgUserAndQuery(t *testing.T) {
	s := newSubsystem()
	ctx := context.Background()
	_ = s.Store(ctx, &Entry{ID: "e1", OrgID: "o1", UserID: "u1", Tier: TierWorking, Content: map[string]any{"kind": "note"}})
	_ = s.Store(ctx, &Entry{ID: "e2", OrgID: "o1", UserID: "u1", Tier: TierWorking, Content: map[string]any{"kind": "task"}})
	_ = s.Store(ctx, &Entry{ID: "e3", OrgID: "o2", UserID: "u2", Tier: TierWorking, Content: map[string]any{"kind": "note"}})

	results, err := s.Search(ctx, "o1", "u1", TierWorking, map[string]any{"kind": "note"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "e1" {
		t.Errorf("Search() = %+v", results)
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := newSubsystem()
	ctx := context.Background()
	_ = s.Store(ctx, &Entry{ID: "e1", OrgID: "o1", UserID: "u1", Tier: TierWorking})
	_ = s.Store(ctx, &Entry{ID: "e2", OrgID: "o1", UserID: "u1", Tier: TierWorking})

	if err := s.Delete(ctx, "o1", "u1", TierWorking, "e1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Retrieve(ctx, "o1", "u1", TierWorking, "e1"); err == nil {
		t.Error("expected deleted entry to be gone")
	}

	if err := s.Clear(ctx, "o1", "u1", TierWorking); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	snap, err := s.Snapshot(ctx, "o1", "u1", []string{"working"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if entries, _ := snap["working"].([]*Entry); len(entries) != 0 {
		t.Errorf("expected no entries after Clear, got %v", entries)
	}
}

func TestOrgScopedEntryIsVisibleToEveryUserInOrg(t *testing.T) {
	s := newSubsystem()
	ctx := context.Background()
	if err := s.Store(ctx, &Entry{ID: "shared", OrgID: "o1", UserID: "u1", Scope: ScopeOrg, Tier: TierWorking, Content: map[string]any{"kind": "policy"}}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := s.Retrieve(ctx, "o1", "u2", TierWorking, "shared")
	if err != nil {
		t.Fatalf("Retrieve as different user: %v", err)
	}
	if got.Content["kind"] != "policy" {
		t.Errorf("Content = %v", got.Content)
	}

	results, err := s.Search(ctx, "o1", "u2", TierWorking, map[string]any{"kind": "policy"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "shared" {
		t.Errorf("Search() = %+v", results)
	}
}

func TestUserScopedEntryIsPrivateToItsOwner(t *testing.T) {
	s := newSubsystem()
	ctx := context.Background()
	if err := s.Store(ctx, &Entry{ID: "private", OrgID: "o1", UserID: "u1", Tier: TierWorking}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := s.Retrieve(ctx, "o1", "u2", TierWorking, "private"); err == nil {
		t.Error("expected a different user in the same org not to see a user-scoped entry")
	}
}

func TestClearNeverRemovesOrgScopedEntries(t *testing.T) {
	s := newSubsystem()
	ctx := context.Background()
	_ = s.Store(ctx, &Entry{ID: "shared", OrgID: "o1", UserID: "u1", Scope: ScopeOrg, Tier: TierWorking})
	_ = s.Store(ctx, &Entry{ID: "private", OrgID: "o1", UserID: "u1", Tier: TierWorking})

	if err := s.Clear(ctx, "o1", "u1", TierWorking); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Retrieve(ctx, "o1", "u1", TierWorking, "shared"); err != nil {
		t.Errorf("expected org-scoped entry to survive Clear, got %v", err)
	}
	if _, err := s.Retrieve(ctx, "o1", "u1", TierWorking, "private"); err == nil {
		t.Error("expected private entry to be removed by Clear")
	}
}

func TestUpsertAndQueryRequireVectorBackend(t *testing.T) {
	s := newSubsystem()
	e := &Entry{ID: "e1", OrgID: "o1", UserID: "u1", Tier: TierSemantic, ModelVersion: "v1", Embedding: []float32{1, 0}}
	if err := s.Upsert(context.Background(), e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Query(context.Background(), "o1", "u1", TierSemantic, []float32{1, 0}, "v1", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Query() = %+v", results)
	}
}

func TestCosineSimilarityRejectsDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	if !orcherr.Is(err, orcherr.KindDimensionMismatch) {
		t.Fatalf("expected dimension mismatch error, got %v", err)
	}
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim < 0.999 || sim > 1.001 {
		t.Errorf("sim = %v, want ~1.0", sim)
	}
}

func TestDecayPassRemovesEntriesBelowFloor(t *testing.T) {
	s := newSubsystem()
	ctx := context.Background()
	e := &Entry{ID: "old", OrgID: "o1", UserID: "u1", Tier: TierWorking}
	if err := s.Store(ctx, e); err != nil {
		t.Fatalf("Store: %v", err)
	}
	// force LastAccessAt far enough in the past that the decay score drops
	// below the floor within a short half-life.
	backend := s.backends[TierWorking].(*InMemoryBackend)
	backend.mu.Lock()
	backend.entries[key("o1", "u1", "old")].LastAccessAt = time.Now().Add(-time.Hour)
	backend.mu.Unlock()

	removed, err := s.DecayPass(ctx, "o1", "u1", TierWorking, time.Minute, 0.5)
	if err != nil {
		t.Fatalf("DecayPass: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
