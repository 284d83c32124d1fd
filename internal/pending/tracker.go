// Package pending keeps track of fire-and-forget mutation submissions until
// they settle, so a client can overlay them on its last snapshot.
package pending

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"actionboard/internal/intent"
)

// Submitter delivers a mutation to the server.
type Submitter func(ctx context.Context, m intent.Mutation) error

// Result is reported once per submission when it settles.
type Result struct {
	Key      string
	Mutation intent.Mutation
	Err      error
	// Superseded is set when a newer submission with the same key replaced or absorbed this one.
	Superseded bool
}

type entry struct {
	mutation intent.Mutation
	// overlay replaces mutation in snapshots when earlier updates were merged in.
	overlay intent.Mutation
	seq     uint64
	cancel  context.CancelFunc
	// inflight counts the unsettled requests behind the overlay, shared by merged entries.
	inflight *int
}

func (e *entry) snapshotMutation() intent.Mutation {
	if e.overlay != nil {
		return e.overlay
	}
	return e.mutation
}

type Tracker struct {
	submit   Submitter
	logger   *zap.Logger
	onSettle func(Result)

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
	wg      sync.WaitGroup
}

type Option func(*Tracker)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// OnSettle registers a callback run after each submission settles.
func OnSettle(fn func(Result)) Option {
	return func(t *Tracker) { t.onSettle = fn }
}

func New(submit Submitter, opts ...Option) *Tracker {
	t := &Tracker{
		submit:  submit,
		logger:  zap.NewNop(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit records m as pending and sends it in the background. The newest
// submission for a key counts as the latest in the overlay order.
//
// A pending update to the same action is merged: the overlay keeps the earlier
// patch under the new one and the earlier request is left to finish. Any
// other pending submission with the same key is cancelled and replaced.
func (t *Tracker) Submit(ctx context.Context, m intent.Mutation) {
	key := intent.Key(m)
	subCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.seq++
	e := &entry{mutation: m, seq: t.seq, cancel: cancel, inflight: new(int)}
	if prev, ok := t.entries[key]; ok {
		prevUpdate, wasUpdate := prev.snapshotMutation().(intent.Update)
		if u, isUpdate := m.(intent.Update); wasUpdate && isUpdate {
			e.overlay = intent.Update{ID: u.ID, Patch: prevUpdate.Patch.Merge(u.Patch)}
			e.inflight = prev.inflight
			t.logger.Debug("merging pending update", zap.String("key", key))
		} else {
			prev.cancel()
			t.logger.Debug("replacing pending submission", zap.String("key", key))
		}
	}
	*e.inflight++
	t.entries[key] = e
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer cancel()
		err := t.submit(subCtx, m)
		t.settle(key, e, err)
	}()
}

// settle drops the overlay once every request merged into it has settled.
func (t *Tracker) settle(key string, e *entry, err error) {
	t.mu.Lock()
	*e.inflight--
	cur, ok := t.entries[key]
	current := ok && cur == e
	if ok && cur.inflight == e.inflight && *e.inflight == 0 {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	cancelled := !current && errors.Is(err, context.Canceled)
	if err != nil && !cancelled {
		t.logger.Warn("submission failed", zap.String("key", key), zap.Error(err))
	}
	if t.onSettle != nil {
		t.onSettle(Result{Key: key, Mutation: e.mutation, Err: err, Superseded: !current})
	}
}

// Snapshot returns the pending create, update and duplicate mutations in
// submission order, and the ids with a pending delete.
func (t *Tracker) Snapshot() ([]intent.Mutation, []string) {
	t.mu.Lock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	mutations := make([]intent.Mutation, 0, len(entries))
	deletions := []string{}
	for _, e := range entries {
		m := e.snapshotMutation()
		if d, ok := m.(intent.Delete); ok {
			deletions = append(deletions, d.ID)
			continue
		}
		mutations = append(mutations, m)
	}
	return mutations, deletions
}

// Len reports the number of unsettled submissions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Wait blocks until every submission made so far has settled.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
