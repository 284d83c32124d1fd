package reconcile_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"actionboard/internal/domain"
	"actionboard/internal/intent"
	"actionboard/internal/reconcile"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func snapshot() []domain.Action {
	return []domain.Action{
		{ID: "a1", Title: "Post", State: domain.StateDo, Date: day("2025-01-01"), Responsibles: []string{"p1"}},
		{ID: "a2", Title: "Report", State: domain.StateFinished, Date: day("2024-01-01"), Responsibles: []string{"p2"}},
	}
}

func TestReconcileWithoutPendingReturnsSnapshot(t *testing.T) {
	base := snapshot()
	got := reconcile.Reconcile(base, nil, nil)
	if diff := cmp.Diff(base, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestReconcileScenario(t *testing.T) {
	pending := []intent.Mutation{intent.Update{ID: "a1", Patch: intent.Patch{State: strPtr(domain.StateDoing)}}}
	got := reconcile.Reconcile(snapshot(), pending, []string{"a2"})
	require.Len(t, got, 1)
	require.Equal(t, "a1", got[0].ID)
	require.Equal(t, domain.StateDoing, got[0].State)
	require.Equal(t, day("2025-01-01"), got[0].Date)
	require.Equal(t, "Post", got[0].Title)
}

func TestDeletionWinsOverPendingUpdate(t *testing.T) {
	pending := []intent.Mutation{intent.Update{ID: "a2", Patch: intent.Patch{Title: strPtr("renamed")}}}
	got := reconcile.Reconcile(snapshot(), pending, []string{"a2"})
	require.Equal(t, []string{"a1"}, reconcile.IDs(got))
}

func TestPendingDeleteMutationHidesAction(t *testing.T) {
	got := reconcile.Reconcile(snapshot(), []intent.Mutation{intent.Delete{ID: "a1"}}, nil)
	require.Equal(t, []string{"a2"}, reconcile.IDs(got))
}

func TestLastOverlayWins(t *testing.T) {
	pending := []intent.Mutation{
		intent.Update{ID: "a1", Patch: intent.Patch{State: strPtr(domain.StateReview)}},
		intent.Update{ID: "a1", Patch: intent.Patch{State: strPtr(domain.StateDone)}},
	}
	got := reconcile.Reconcile(snapshot(), pending, nil)
	require.Equal(t, domain.StateDone, got[0].State)
}

func TestUpdateForUnknownIDIsInserted(t *testing.T) {
	pending := []intent.Mutation{intent.Update{ID: "ghost", Patch: intent.Patch{Title: strPtr("late update")}}}
	got := reconcile.Reconcile(snapshot(), pending, nil)
	require.Equal(t, []string{"a1", "a2", "ghost"}, reconcile.IDs(got))
	require.Equal(t, "late update", got[2].Title)
}

func TestPendingCreateThenUpdate(t *testing.T) {
	created := domain.Action{ID: "n1", Title: "New", State: domain.StateIdea, Responsibles: []string{"p1"}}
	pending := []intent.Mutation{
		intent.Create{Action: created},
		intent.Update{ID: "n1", Patch: intent.Patch{State: strPtr(domain.StateDoing)}},
	}
	got := reconcile.Reconcile(nil, pending, nil)
	require.Len(t, got, 1)
	require.Equal(t, "New", got[0].Title)
	require.Equal(t, domain.StateDoing, got[0].State)
}

func TestDuplicateCopiesSource(t *testing.T) {
	pending := []intent.Mutation{
		intent.Duplicate{SourceID: "a1", NewID: "a1-copy"},
		intent.Duplicate{SourceID: "missing", NewID: "nothing"},
	}
	got := reconcile.Reconcile(snapshot(), pending, nil)
	require.Equal(t, []string{"a1", "a2", "a1-copy"}, reconcile.IDs(got))
	require.Equal(t, "Post", got[2].Title)
}

func TestReconcileDoesNotAliasInputs(t *testing.T) {
	base := snapshot()
	pending := []intent.Mutation{intent.Update{ID: "a1", Patch: intent.Patch{Responsibles: []string{"p9"}}}}
	got := reconcile.Reconcile(base, pending, nil)
	got[1].Responsibles[0] = "changed"
	require.Equal(t, []string{"p1"}, base[0].Responsibles)
	require.Equal(t, "p2", base[1].Responsibles[0])
}

func TestReconcileNilInputs(t *testing.T) {
	got := reconcile.Reconcile(nil, nil, nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}
