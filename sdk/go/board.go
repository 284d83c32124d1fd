package actionboardsdk

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"actionboard/internal/domain"
	"actionboard/internal/intent"
	"actionboard/internal/pending"
	"actionboard/internal/reconcile"
)

// Board submits mutations without waiting for them and overlays whatever is
// still in flight on every snapshot it reads.
type Board struct {
	client  *Client
	tracker *pending.Tracker
}

// NewBoard wraps c. onSettle, when non-nil, sees every submission as it settles.
func NewBoard(c *Client, logger *zap.Logger, onSettle func(pending.Result)) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Board{client: c}
	opts := []pending.Option{pending.WithLogger(logger.Named("board"))}
	if onSettle != nil {
		opts = append(opts, pending.OnSettle(onSettle))
	}
	b.tracker = pending.New(func(ctx context.Context, m intent.Mutation) error {
		_, err := c.Mutate(ctx, m)
		return err
	}, opts...)
	return b
}

// Submit fires m in the background. It returns immediately.
func (b *Board) Submit(ctx context.Context, m intent.Mutation) {
	b.tracker.Submit(ctx, m)
}

// Pending reports the number of unsettled submissions.
func (b *Board) Pending() int {
	return b.tracker.Len()
}

// Wait blocks until every submission made so far has settled.
func (b *Board) Wait() {
	b.tracker.Wait()
}

// Actions fetches the snapshot and reconciles it with the in-flight submissions locally.
func (b *Board) Actions(ctx context.Context, f ActionFilter) ([]domain.Action, error) {
	snapshot, err := b.client.Actions(ctx, f)
	if err != nil {
		return nil, err
	}
	mutations, deletions := b.tracker.Snapshot()
	actions := reconcile.Reconcile(snapshot, mutations, deletions)
	return slices.DeleteFunc(actions, func(a domain.Action) bool { return !f.match(a) }), nil
}

// View asks the server for a view with the in-flight submissions attached as pending state.
func (b *Board) View(ctx context.Context, kind string, opts ViewOptions) (View, error) {
	mutations, deletions := b.tracker.Snapshot()
	for _, m := range mutations {
		opts.Pending = append(opts.Pending, intent.Form(m))
	}
	opts.Deletions = append(opts.Deletions, deletions...)
	return b.client.View(ctx, kind, opts)
}
