package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmptyReferenceSlugsDoNotAliasDeclaredOrder(t *testing.T) {
	var ref Reference
	states := ref.StateSlugs()
	states[0] = "scratch"
	_ = append(states[:1], "extra")
	require.Equal(t, StateIdea, StateOrder[0])
	require.Equal(t, StateDo, StateOrder[1])

	priorities := ref.PrioritySlugs()
	priorities[0] = "scratch"
	require.Equal(t, PriorityLow, PriorityOrder[0])
	require.Equal(t, []string{StateIdea, StateDo, StateDoing, StateReview, StateDone, StateFinished}, ref.StateSlugs())
}

func TestReferenceSlugsFollowTables(t *testing.T) {
	ref := Reference{
		States:     []State{{Slug: "todo"}, {Slug: "finished"}},
		Priorities: []Priority{{Slug: "high"}, {Slug: "low"}},
	}
	require.Equal(t, []string{"todo", "finished"}, ref.StateSlugs())
	require.Equal(t, []string{"high", "low"}, ref.PrioritySlugs())
}

func TestIsDelayed(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)
	a := Action{State: StateDoing, Date: now.Add(-time.Minute)}
	require.True(t, a.IsDelayed(now))
	a.State = StateFinished
	require.False(t, a.IsDelayed(now))
	a = Action{State: StateDo, Date: now}
	require.False(t, a.IsDelayed(now))
}
