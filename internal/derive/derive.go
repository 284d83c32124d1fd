// Package derive computes the named subsets the dashboard shows next to the
// calendar: overdue, today, tomorrow, this week, upcoming, urgent and the
// content feed. Each calculator is a pure filter that keeps input order,
// except ContentFeed which sorts newest first.
package derive

import (
	"slices"
	"time"

	"actionboard/internal/calendar"
	"actionboard/internal/domain"
)

func filter(actions []domain.Action, keep func(domain.Action) bool) []domain.Action {
	out := make([]domain.Action, 0, len(actions))
	for _, a := range actions {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Overdue keeps unfinished actions scheduled strictly before now. When
// priorities are given only those priorities are kept.
func Overdue(actions []domain.Action, now time.Time, priorities ...string) []domain.Action {
	return filter(actions, func(a domain.Action) bool {
		if !a.IsDelayed(now) {
			return false
		}
		return len(priorities) == 0 || slices.Contains(priorities, a.Priority)
	})
}

// OnDay keeps actions on day's calendar day in day's location. Finished
// actions are included.
func OnDay(actions []domain.Action, day time.Time) []domain.Action {
	return filter(actions, func(a domain.Action) bool { return calendar.SameDay(a.Date, day) })
}

func Today(actions []domain.Action, now time.Time) []domain.Action {
	return OnDay(actions, now)
}

func Tomorrow(actions []domain.Action, now time.Time) []domain.Action {
	return OnDay(actions, calendar.AddDays(now, 1))
}

// ThisWeek keeps actions inside the week containing now.
func ThisWeek(actions []domain.Action, now time.Time, weekStart time.Weekday) []domain.Action {
	from := calendar.StartOfWeek(now, weekStart)
	to := calendar.AddDays(from, 7)
	return filter(actions, func(a domain.Action) bool {
		return !a.Date.Before(from) && a.Date.Before(to)
	})
}

// Upcoming keeps unfinished actions scheduled strictly after now.
func Upcoming(actions []domain.Action, now time.Time) []domain.Action {
	return filter(actions, func(a domain.Action) bool {
		return a.Date.After(now) && !a.IsFinished()
	})
}

// Urgent keeps unfinished high-priority actions.
func Urgent(actions []domain.Action) []domain.Action {
	return filter(actions, func(a domain.Action) bool {
		return a.Priority == domain.PriorityHigh && !a.IsFinished()
	})
}

// ContentFeed keeps actions in the publishing categories, newest first.
func ContentFeed(actions []domain.Action, categories []string) []domain.Action {
	out := filter(actions, func(a domain.Action) bool { return slices.Contains(categories, a.Category) })
	slices.SortStableFunc(out, func(a, b domain.Action) int { return b.Date.Compare(a.Date) })
	return out
}

// Sets is every calculator evaluated once against the same input.
type Sets struct {
	Overdue  []domain.Action `json:"overdue"`
	Today    []domain.Action `json:"today"`
	Tomorrow []domain.Action `json:"tomorrow"`
	ThisWeek []domain.Action `json:"this_week"`
	Upcoming []domain.Action `json:"upcoming"`
	Urgent   []domain.Action `json:"urgent"`
	Feed     []domain.Action `json:"feed"`
}

func All(actions []domain.Action, now time.Time, weekStart time.Weekday, feedCategories []string) Sets {
	return Sets{
		Overdue:  Overdue(actions, now),
		Today:    Today(actions, now),
		Tomorrow: Tomorrow(actions, now),
		ThisWeek: ThisWeek(actions, now, weekStart),
		Upcoming: Upcoming(actions, now),
		Urgent:   Urgent(actions),
		Feed:     ContentFeed(actions, feedCategories),
	}
}
