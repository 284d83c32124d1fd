package app

import (
	"context"
	"testing"

	"actionboard/internal/repo"
)

func TestOpenSeedsReferenceOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	eng, err := Open(ctx, Options{Workspace: dir}, "tester")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.DB.Close()
	ref, err := eng.Repo.LoadReference(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ref.States) != 6 || len(ref.Categories) != 9 {
		t.Fatalf("reference not seeded: %d states, %d categories", len(ref.States), len(ref.Categories))
	}
	if err := EnsureReference(ctx, eng, "tester"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	evts, err := eng.Repo.LatestEvents(ctx, 10, repo.EventFilter{Type: "reference.seed"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 {
		t.Fatalf("expected a single seed event, got %d", len(evts))
	}
}
