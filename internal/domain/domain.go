package domain

import (
	"slices"
	"time"
)

const (
	StateIdea     = "idea"
	StateDo       = "do"
	StateDoing    = "doing"
	StateReview   = "review"
	StateDone     = "done"
	StateFinished = "finished"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// StateOrder is the declared workflow order. Sorting and kanban columns follow it.
var StateOrder = []string{StateIdea, StateDo, StateDoing, StateReview, StateDone, StateFinished}

// PriorityOrder is the declared priority order, lowest first.
var PriorityOrder = []string{PriorityLow, PriorityMedium, PriorityHigh}

type Action struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category"`
	State        string    `json:"state" enum:"idea,do,doing,review,done,finished"`
	Priority     string    `json:"priority" enum:"low,medium,high"`
	Date         time.Time `json:"date" format:"date-time"`
	Partner      string    `json:"partner"`
	Responsibles []string  `json:"responsibles"`
	Caption      string    `json:"caption,omitempty"`
	Files        []string  `json:"files,omitempty"`
	Archived     bool      `json:"archived,omitempty"`
	CreatedAt    time.Time `json:"created_at" format:"date-time"`
	UpdatedAt    time.Time `json:"updated_at" format:"date-time"`
}

// IsFinished reports whether the action reached the terminal state.
func (a Action) IsFinished() bool {
	return a.State == StateFinished
}

// IsDelayed reports whether the action is scheduled before now and not finished.
func (a Action) IsDelayed(now time.Time) bool {
	return a.Date.Before(now) && !a.IsFinished()
}

// Clone returns a copy that shares no slices with a.
func (a Action) Clone() Action {
	c := a
	if a.Responsibles != nil {
		c.Responsibles = append([]string(nil), a.Responsibles...)
	}
	if a.Files != nil {
		c.Files = append([]string(nil), a.Files...)
	}
	return c
}

type Partner struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Short      string   `json:"short"`
	Slug       string   `json:"slug"`
	Background string   `json:"background"`
	Foreground string   `json:"foreground"`
	Users      []string `json:"users"`
	Archived   bool     `json:"archived,omitempty"`
	SortOrder  int      `json:"sort"`
}

// Authorizes reports whether the person may see the partner's actions.
func (p Partner) Authorizes(personID string) bool {
	for _, u := range p.Users {
		if u == personID {
			return true
		}
	}
	return false
}

type Person struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Short    string `json:"short"`
	Initials string `json:"initials"`
	Image    string `json:"image,omitempty"`
	Admin    bool   `json:"admin"`
	Role     int    `json:"role"`
}

type Area struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"order"`
	Shortcut  string `json:"shortcut,omitempty"`
}

type Category struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Area      string `json:"area"`
	SortOrder int    `json:"order"`
	Shortcut  string `json:"shortcut,omitempty"`
}

type State struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Color     string `json:"color"`
	SortOrder int    `json:"order"`
	Shortcut  string `json:"shortcut,omitempty"`
}

type Priority struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Color     string `json:"color"`
	SortOrder int    `json:"order"`
	Shortcut  string `json:"shortcut,omitempty"`
}

// Reference bundles the lookup tables loaded once per view.
type Reference struct {
	Areas      []Area     `json:"areas"`
	Categories []Category `json:"categories"`
	States     []State    `json:"states"`
	Priorities []Priority `json:"priorities"`
	Partners   []Partner  `json:"partners"`
	People     []Person   `json:"people"`
}

// StateSlugs returns the state slugs in reference order, or a copy of StateOrder when empty.
func (r Reference) StateSlugs() []string {
	if len(r.States) == 0 {
		return slices.Clone(StateOrder)
	}
	out := make([]string, 0, len(r.States))
	for _, s := range r.States {
		out = append(out, s.Slug)
	}
	return out
}

// PrioritySlugs returns the priority slugs in reference order, or a copy of PriorityOrder when empty.
func (r Reference) PrioritySlugs() []string {
	if len(r.Priorities) == 0 {
		return slices.Clone(PriorityOrder)
	}
	out := make([]string, 0, len(r.Priorities))
	for _, p := range r.Priorities {
		out = append(out, p.Slug)
	}
	return out
}

func (r Reference) CategorySlugs() []string {
	out := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		out = append(out, c.Slug)
	}
	return out
}

func (r Reference) PartnerSlugs() []string {
	out := make([]string, 0, len(r.Partners))
	for _, p := range r.Partners {
		out = append(out, p.Slug)
	}
	return out
}

func (r Reference) Person(id string) (Person, bool) {
	for _, p := range r.People {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
