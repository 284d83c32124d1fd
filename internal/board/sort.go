// Package board orders and groups reconciled actions for the dashboard views.
// Nothing here mutates its input; every grouping returns non-nil buckets.
package board

import (
	"fmt"
	"slices"
	"strings"

	"actionboard/internal/domain"
)

type SortKey string

const (
	SortState    SortKey = "state"
	SortPriority SortKey = "priority"
	SortTime     SortKey = "time"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortState, SortPriority, SortTime:
		return k, nil
	case "":
		return SortTime, nil
	default:
		return "", fmt.Errorf("invalid sort key %q (state, priority, time)", s)
	}
}

// Sort orders actions by key. State and priority use a stable bucket sort over
// the reference order; descending reverses the whole concatenation, so both
// bucket order and in-bucket order flip. Time is chronological.
func Sort(actions []domain.Action, key SortKey, ref domain.Reference, desc bool) []domain.Action {
	var out []domain.Action
	switch key {
	case SortState:
		out = bucketSort(actions, ref.StateSlugs(), func(a domain.Action) string { return a.State })
	case SortPriority:
		out = bucketSort(actions, ref.PrioritySlugs(), func(a domain.Action) string { return a.Priority })
	default:
		out = make([]domain.Action, len(actions))
		copy(out, actions)
		slices.SortStableFunc(out, func(a, b domain.Action) int { return a.Date.Compare(b.Date) })
	}
	if desc {
		slices.Reverse(out)
	}
	return out
}

// bucketSort walks order and collects matching actions per bucket. Actions
// whose value is not in order trail the result in input order.
func bucketSort(actions []domain.Action, order []string, field func(domain.Action) string) []domain.Action {
	out := make([]domain.Action, 0, len(actions))
	known := make(map[string]struct{}, len(order))
	for _, slug := range order {
		known[slug] = struct{}{}
		for _, a := range actions {
			if field(a) == slug {
				out = append(out, a)
			}
		}
	}
	for _, a := range actions {
		if _, ok := known[field(a)]; !ok {
			out = append(out, a)
		}
	}
	return out
}
