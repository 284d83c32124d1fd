// Package intent models the mutations a client submits against actions.
// A submission arrives as a flat key/value form with an "intent" field and is
// turned into one of Create, Update, Delete or Duplicate before it reaches
// the engine or the reconciler.
package intent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"actionboard/internal/domain"
)

type Kind string

const (
	KindCreate    Kind = "create"
	KindUpdate    Kind = "update"
	KindDelete    Kind = "delete"
	KindDuplicate Kind = "duplicate"
)

var ErrUnknownIntent = errors.New("unknown intent")

// FieldError reports a required field missing or malformed in a submission.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Mutation is implemented by Create, Update, Delete and Duplicate.
type Mutation interface {
	Intent() Kind
	// Target is the id of the action the mutation produces or changes.
	Target() string
}

// Key identifies a submission for deduplication: one per action and intent.
func Key(m Mutation) string {
	return m.Target() + ":" + string(m.Intent())
}

type Create struct {
	Action domain.Action
}

func (c Create) Intent() Kind   { return KindCreate }
func (c Create) Target() string { return c.Action.ID }

type Update struct {
	ID    string
	Patch Patch
}

func (u Update) Intent() Kind   { return KindUpdate }
func (u Update) Target() string { return u.ID }

type Delete struct {
	ID string
}

func (d Delete) Intent() Kind   { return KindDelete }
func (d Delete) Target() string { return d.ID }

type Duplicate struct {
	SourceID string
	NewID    string
}

func (d Duplicate) Intent() Kind   { return KindDuplicate }
func (d Duplicate) Target() string { return d.NewID }

// Patch holds the fields an update changes. Nil fields are left untouched.
type Patch struct {
	Title        *string
	Description  *string
	Category     *string
	State        *string
	Priority     *string
	Date         *time.Time
	Partner      *string
	Responsibles []string
	Caption      *string
	Files        []string
	Archived     *bool
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.State == nil &&
		p.Priority == nil && p.Date == nil && p.Partner == nil && p.Responsibles == nil &&
		p.Caption == nil && p.Files == nil && p.Archived == nil
}

// Apply returns a copy of a with the patch fields written over it.
func (p Patch) Apply(a domain.Action) domain.Action {
	out := a.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.State != nil {
		out.State = *p.State
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Partner != nil {
		out.Partner = *p.Partner
	}
	if p.Responsibles != nil {
		out.Responsibles = append([]string(nil), p.Responsibles...)
	}
	if p.Caption != nil {
		out.Caption = *p.Caption
	}
	if p.Files != nil {
		out.Files = append([]string(nil), p.Files...)
	}
	if p.Archived != nil {
		out.Archived = *p.Archived
	}
	return out
}

// Merge returns p with the fields set in next written over it.
func (p Patch) Merge(next Patch) Patch {
	out := p
	pick := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	pick(&out.Title, next.Title)
	pick(&out.Description, next.Description)
	pick(&out.Category, next.Category)
	pick(&out.State, next.State)
	pick(&out.Priority, next.Priority)
	pick(&out.Partner, next.Partner)
	pick(&out.Caption, next.Caption)
	if next.Date != nil {
		out.Date = next.Date
	}
	if next.Responsibles != nil {
		out.Responsibles = next.Responsibles
	}
	if next.Files != nil {
		out.Files = next.Files
	}
	if next.Archived != nil {
		out.Archived = next.Archived
	}
	return out
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// ParseDate accepts RFC3339 and the zone-less layouts a date picker sends.
// Zone-less values are read in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// Parse turns a flat submission into a typed mutation, reading zone-less dates as UTC.
func Parse(form map[string]string) (Mutation, error) {
	return ParseInLocation(form, time.UTC)
}

// ParseInLocation is Parse with zone-less dates read in loc.
func ParseInLocation(form map[string]string, loc *time.Location) (Mutation, error) {
	get := func(key string) (string, bool) {
		v, ok := form[key]
		return strings.TrimSpace(v), ok
	}
	kind, _ := get("intent")
	switch Kind(kind) {
	case KindCreate:
		return parseCreate(get, loc)
	case KindUpdate:
		id, _ := get("id")
		if id == "" {
			return nil, FieldError{Field: "id"}
		}
		patch, err := parsePatch(get, loc)
		if err != nil {
			return nil, err
		}
		return Update{ID: id, Patch: patch}, nil
	case KindDelete:
		id, _ := get("id")
		if id == "" {
			return nil, FieldError{Field: "id"}
		}
		return Delete{ID: id}, nil
	case KindDuplicate:
		src, _ := get("source_id")
		if src == "" {
			src, _ = get("id")
		}
		if src == "" {
			return nil, FieldError{Field: "source_id"}
		}
		newID, _ := get("new_id")
		if newID == "" {
			newID = uuid.NewString()
		}
		return Duplicate{SourceID: src, NewID: newID}, nil
	case "":
		return nil, FieldError{Field: "intent"}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntent, kind)
	}
}

func parseCreate(get func(string) (string, bool), loc *time.Location) (Mutation, error) {
	a := domain.Action{State: domain.StateDo, Priority: domain.PriorityMedium}
	a.ID, _ = get("id")
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Title, _ = get("title"); a.Title == "" {
		return nil, FieldError{Field: "title"}
	}
	rawDate, _ := get("date")
	if rawDate == "" {
		return nil, FieldError{Field: "date"}
	}
	date, err := ParseDate(rawDate, loc)
	if err != nil {
		return nil, FieldError{Field: "date", Reason: err.Error()}
	}
	a.Date = date
	if a.Partner, _ = get("partner"); a.Partner == "" {
		return nil, FieldError{Field: "partner"}
	}
	if a.Category, _ = get("category"); a.Category == "" {
		return nil, FieldError{Field: "category"}
	}
	rawResp, _ := get("responsibles")
	a.Responsibles = splitList(rawResp)
	if len(a.Responsibles) == 0 {
		return nil, FieldError{Field: "responsibles"}
	}
	if v, _ := get("state"); v != "" {
		a.State = v
	}
	if v, _ := get("priority"); v != "" {
		a.Priority = v
	}
	a.Description, _ = get("description")
	a.Caption, _ = get("caption")
	rawFiles, _ := get("files")
	a.Files = splitList(rawFiles)
	return Create{Action: a}, nil
}

func parsePatch(get func(string) (string, bool), loc *time.Location) (Patch, error) {
	var p Patch
	str := func(key string) *string {
		if v, ok := get(key); ok {
			return &v
		}
		return nil
	}
	p.Title = str("title")
	if p.Title != nil && *p.Title == "" {
		return Patch{}, FieldError{Field: "title"}
	}
	p.Description = str("description")
	p.Category = str("category")
	p.State = str("state")
	p.Priority = str("priority")
	p.Partner = str("partner")
	p.Caption = str("caption")
	if raw, ok := get("date"); ok {
		d, err := ParseDate(raw, loc)
		if err != nil {
			return Patch{}, FieldError{Field: "date", Reason: err.Error()}
		}
		p.Date = &d
	}
	if raw, ok := get("responsibles"); ok {
		p.Responsibles = splitList(raw)
		if len(p.Responsibles) == 0 {
			return Patch{}, FieldError{Field: "responsibles", Reason: "at least one responsible is required"}
		}
	}
	if raw, ok := get("files"); ok {
		p.Files = splitList(raw)
		if p.Files == nil {
			p.Files = []string{}
		}
	}
	if raw, ok := get("archived"); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Patch{}, FieldError{Field: "archived", Reason: err.Error()}
		}
		p.Archived = &b
	}
	return p, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Form encodes m back into the flat key/value shape Parse accepts.
func Form(m Mutation) map[string]string {
	out := map[string]string{"intent": string(m.Intent())}
	switch v := m.(type) {
	case Create:
		a := v.Action
		out["id"] = a.ID
		out["title"] = a.Title
		out["description"] = a.Description
		out["category"] = a.Category
		out["state"] = a.State
		out["priority"] = a.Priority
		out["date"] = a.Date.Format(time.RFC3339)
		out["partner"] = a.Partner
		out["responsibles"] = strings.Join(a.Responsibles, ",")
		if a.Caption != "" {
			out["caption"] = a.Caption
		}
		if len(a.Files) > 0 {
			out["files"] = strings.Join(a.Files, ",")
		}
	case Update:
		out["id"] = v.ID
		p := v.Patch
		set := func(key string, val *string) {
			if val != nil {
				out[key] = *val
			}
		}
		set("title", p.Title)
		set("description", p.Description)
		set("category", p.Category)
		set("state", p.State)
		set("priority", p.Priority)
		set("partner", p.Partner)
		set("caption", p.Caption)
		if p.Date != nil {
			out["date"] = p.Date.Format(time.RFC3339)
		}
		if p.Responsibles != nil {
			out["responsibles"] = strings.Join(p.Responsibles, ",")
		}
		if p.Files != nil {
			out["files"] = strings.Join(p.Files, ",")
		}
		if p.Archived != nil {
			out["archived"] = strconv.FormatBool(*p.Archived)
		}
	case Delete:
		out["id"] = v.ID
	case Duplicate:
		out["source_id"] = v.SourceID
		out["new_id"] = v.NewID
	}
	return out
}
