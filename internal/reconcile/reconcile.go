// Package reconcile overlays in-flight mutations on the last server snapshot
// so a view can render the expected result before the server confirms it.
package reconcile

import (
	"actionboard/internal/domain"
	"actionboard/internal/intent"
)

// Reconcile merges base with pending overlays and hides pending deletions.
//
// Overlays apply by id in the order given, so the last submission for an id
// wins. An update for an id that is not in base is inserted on top of an
// empty record. Ids in deletions, or targeted by a pending Delete, never
// appear in the result. Result order is base order followed by inserted ids
// in pending order; display order belongs to the board package.
func Reconcile(base []domain.Action, pending []intent.Mutation, deletions []string) []domain.Action {
	deleted := make(map[string]struct{}, len(deletions))
	for _, id := range deletions {
		deleted[id] = struct{}{}
	}
	byID := make(map[string]domain.Action, len(base)+len(pending))
	order := make([]string, 0, len(base)+len(pending))
	put := func(a domain.Action) {
		if _, ok := byID[a.ID]; !ok {
			order = append(order, a.ID)
		}
		byID[a.ID] = a
	}
	for _, a := range base {
		put(a.Clone())
	}
	for _, m := range pending {
		switch v := m.(type) {
		case intent.Create:
			put(v.Action.Clone())
		case intent.Update:
			cur, ok := byID[v.ID]
			if !ok {
				cur = domain.Action{ID: v.ID}
			}
			put(v.Patch.Apply(cur))
		case intent.Duplicate:
			src, ok := byID[v.SourceID]
			if !ok {
				continue
			}
			dup := src.Clone()
			dup.ID = v.NewID
			put(dup)
		case intent.Delete:
			deleted[v.ID] = struct{}{}
		}
	}
	out := make([]domain.Action, 0, len(order))
	for _, id := range order {
		if _, gone := deleted[id]; gone {
			continue
		}
		out = append(out, byID[id])
	}
	return out
}

// IDs lists the ids of actions in order.
func IDs(actions []domain.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.ID)
	}
	return out
}
