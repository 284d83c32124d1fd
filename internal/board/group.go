package board

import (
	"time"

	"actionboard/internal/calendar"
	"actionboard/internal/domain"
)

const dayKey = "2006-01-02"

type Day struct {
	Date    time.Time       `json:"date"`
	InMonth bool            `json:"in_month"`
	Actions []domain.Action `json:"actions"`
}

type Hour struct {
	Hour    int             `json:"hour"`
	Actions []domain.Action `json:"actions"`
}

type Group struct {
	Key     string          `json:"key"`
	Actions []domain.Action `json:"actions"`
}

// ByDay buckets actions onto every calendar day from from to to inclusive.
// Days are read in from's location.
func ByDay(actions []domain.Action, from, to time.Time) []Day {
	days := calendar.Days(from, to)
	out := make([]Day, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		out[i] = Day{Date: d, InMonth: true, Actions: []domain.Action{}}
		index[d.Format(dayKey)] = i
	}
	loc := from.Location()
	for _, a := range actions {
		if i, ok := index[a.Date.In(loc).Format(dayKey)]; ok {
			out[i].Actions = append(out[i].Actions, a)
		}
	}
	return out
}

// MonthGrid returns the days of month padded with the leading and trailing
// days needed to fill whole weeks.
func MonthGrid(actions []domain.Action, month time.Time, weekStart time.Weekday) []Day {
	first := calendar.StartOfMonth(month)
	last := calendar.EndOfMonth(month)
	days := ByDay(actions, calendar.StartOfWeek(first, weekStart), calendar.EndOfWeek(last, weekStart))
	for i := range days {
		days[i].InMonth = days[i].Date.Month() == first.Month()
	}
	return days
}

// WeekDays returns the seven days of the week containing ref.
func WeekDays(actions []domain.Action, ref time.Time, weekStart time.Weekday) []Day {
	return ByDay(actions, calendar.StartOfWeek(ref, weekStart), calendar.EndOfWeek(ref, weekStart))
}

// ByHour splits the actions scheduled on day into its 24 hours.
func ByHour(actions []domain.Action, day time.Time) []Hour {
	out := make([]Hour, 24)
	for h := range out {
		out[h] = Hour{Hour: h, Actions: []domain.Action{}}
	}
	loc := day.Location()
	for _, a := range actions {
		if !calendar.SameDay(a.Date, day) {
			continue
		}
		h := a.Date.In(loc).Hour()
		out[h].Actions = append(out[h].Actions, a)
	}
	return out
}

// ByState builds kanban columns in state order.
func ByState(actions []domain.Action, states []string) []Group {
	return groupBy(actions, states, func(a domain.Action) string { return a.State })
}

func ByCategory(actions []domain.Action, categories []string) []Group {
	return groupBy(actions, categories, func(a domain.Action) string { return a.Category })
}

func ByPartner(actions []domain.Action, partners []string) []Group {
	return groupBy(actions, partners, func(a domain.Action) string { return a.Partner })
}

// groupBy emits one group per key, in keys order, then groups for values not
// listed in keys in first-seen order.
func groupBy(actions []domain.Action, keys []string, field func(domain.Action) string) []Group {
	out := make([]Group, 0, len(keys))
	index := make(map[string]int, len(keys))
	for _, k := range keys {
		if _, dup := index[k]; dup {
			continue
		}
		index[k] = len(out)
		out = append(out, Group{Key: k, Actions: []domain.Action{}})
	}
	for _, a := range actions {
		k := field(a)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Group{Key: k, Actions: []domain.Action{}})
		}
		out[i].Actions = append(out[i].Actions, a)
	}
	return out
}
