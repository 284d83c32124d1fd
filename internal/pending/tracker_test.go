package pending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"actionboard/internal/domain"
	"actionboard/internal/intent"
	"actionboard/internal/reconcile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gate holds every submission until released.
type gate struct {
	mu      sync.Mutex
	release map[string]chan error
	started chan string
}

func newGate() *gate {
	return &gate{release: map[string]chan error{}, started: make(chan string, 16)}
}

func (g *gate) ch(key string) chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.release[key]
	if !ok {
		c = make(chan error, 4)
		g.release[key] = c
	}
	return c
}

func (g *gate) submit(ctx context.Context, m intent.Mutation) error {
	g.started <- intent.Key(m)
	select {
	case err := <-g.ch(intent.Key(m)):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func strPtr(s string) *string { return &s }

func TestSnapshotOrdersBySubmission(t *testing.T) {
	g := newGate()
	tr := New(g.submit)
	ctx := context.Background()

	tr.Submit(ctx, intent.Update{ID: "a1", Patch: intent.Patch{Title: strPtr("one")}})
	<-g.started
	tr.Submit(ctx, intent.Delete{ID: "a2"})
	<-g.started
	tr.Submit(ctx, intent.Update{ID: "a3", Patch: intent.Patch{Title: strPtr("three")}})
	<-g.started

	muts, dels := tr.Snapshot()
	require.Len(t, muts, 2)
	require.Equal(t, "a1", muts[0].Target())
	require.Equal(t, "a3", muts[1].Target())
	require.Equal(t, []string{"a2"}, dels)
	require.Equal(t, 3, tr.Len())

	g.ch("a1:update") <- nil
	g.ch("a2:delete") <- nil
	g.ch("a3:update") <- errors.New("rejected")
	tr.Wait()
	require.Equal(t, 0, tr.Len())
}

func TestResubmittedCreateCancelsEarlier(t *testing.T) {
	g := newGate()
	settled := make(chan Result, 8)
	tr := New(g.submit, OnSettle(func(r Result) { settled <- r }))
	ctx := context.Background()

	tr.Submit(ctx, intent.Create{Action: domain.Action{ID: "a1", Title: "first"}})
	<-g.started
	tr.Submit(ctx, intent.Update{ID: "b1", Patch: intent.Patch{Title: strPtr("other")}})
	<-g.started
	tr.Submit(ctx, intent.Create{Action: domain.Action{ID: "a1", Title: "second"}})
	<-g.started

	first := <-settled
	require.True(t, first.Superseded)
	require.ErrorIs(t, first.Err, context.Canceled)

	muts, _ := tr.Snapshot()
	require.Len(t, muts, 2)
	require.Equal(t, "b1", muts[0].Target())
	require.Equal(t, "second", muts[1].(intent.Create).Action.Title)

	g.ch("a1:create") <- nil
	g.ch("b1:update") <- nil
	tr.Wait()
	close(settled)

	for r := range settled {
		require.False(t, r.Superseded)
		require.NoError(t, r.Err)
	}
	require.Equal(t, 0, tr.Len())
}

func TestUpdatesToOneActionMergeAndAllReachTheServer(t *testing.T) {
	g := newGate()
	settled := make(chan Result, 8)
	tr := New(g.submit, OnSettle(func(r Result) { settled <- r }))
	ctx := context.Background()
	moved := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	tr.Submit(ctx, intent.Update{ID: "a1", Patch: intent.Patch{State: strPtr(domain.StateDoing)}})
	<-g.started
	tr.Submit(ctx, intent.Update{ID: "b1", Patch: intent.Patch{Title: strPtr("other")}})
	<-g.started
	tr.Submit(ctx, intent.Update{ID: "a1", Patch: intent.Patch{Date: &moved}})
	<-g.started

	muts, dels := tr.Snapshot()
	require.Empty(t, dels)
	require.Len(t, muts, 2)
	require.Equal(t, "b1", muts[0].Target())

	base := []domain.Action{{ID: "a1", State: domain.StateDo, Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}}
	got := reconcile.Reconcile(base, muts, dels)
	require.Len(t, got, 2)
	require.Equal(t, domain.StateDoing, got[0].State)
	require.True(t, moved.Equal(got[0].Date))

	// Either a1 request settling alone must keep the merged overlay.
	g.ch("a1:update") <- nil
	r := <-settled
	require.Equal(t, "a1:update", r.Key)
	require.NoError(t, r.Err)
	muts, _ = tr.Snapshot()
	require.Len(t, muts, 2)

	g.ch("a1:update") <- nil
	g.ch("b1:update") <- nil
	tr.Wait()
	close(settled)

	superseded := 0
	for r := range settled {
		require.NoError(t, r.Err)
		if r.Superseded {
			superseded++
		}
	}
	require.LessOrEqual(t, superseded, 1)
	require.Equal(t, 0, tr.Len())
}

func TestEmptySnapshot(t *testing.T) {
	tr := New(func(context.Context, intent.Mutation) error { return nil })
	muts, dels := tr.Snapshot()
	require.NotNil(t, muts)
	require.NotNil(t, dels)
	require.Empty(t, muts)
	require.Empty(t, dels)
}
