package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"actionboard/internal/config"
	"actionboard/internal/db"
	"actionboard/internal/domain"
	"actionboard/internal/events"
	"actionboard/internal/intent"
	"actionboard/internal/repo"
)

// ErrConflict is returned when a create or duplicate targets an id that is already stored.
var ErrConflict = errors.New("already exists")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *zap.Logger
	Now    func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config) Engine {
	return Engine{
		DB:     conn,
		Repo:   repo.Repo{DB: conn, Dialect: dialect},
		Events: events.Writer{Dialect: dialect},
		Config: cfg,
		Logger: zap.NewNop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// SeedReference writes the configured lookup tables.
func (e Engine) SeedReference(ctx context.Context, actorID string) error {
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	ref := e.Config.Reference()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SeedReference(ctx, tx, ref); err != nil {
		return err
	}
	payload := events.EventPayload{
		"areas":      len(ref.Areas),
		"categories": len(ref.Categories),
		"states":     len(ref.States),
		"priorities": len(ref.Priorities),
	}
	if err := e.Events.Append(ctx, tx, "reference.seed", "reference", "", actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// Apply durably performs one mutation and returns the affected action.
// For deletions the returned action is the record as it was before removal.
func (e Engine) Apply(ctx context.Context, m intent.Mutation, actorID string) (domain.Action, error) {
	if m == nil {
		return domain.Action{}, intent.FieldError{Field: "intent"}
	}
	ref, err := e.Repo.LoadReference(ctx)
	if err != nil {
		return domain.Action{}, fmt.Errorf("load reference: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Action{}, err
	}
	defer tx.Rollback()

	var out domain.Action
	switch v := m.(type) {
	case intent.Create:
		out, err = e.create(ctx, tx, ref, v, actorID)
	case intent.Update:
		out, err = e.update(ctx, tx, ref, v, actorID)
	case intent.Delete:
		out, err = e.delete(ctx, tx, v, actorID)
	case intent.Duplicate:
		out, err = e.duplicate(ctx, tx, v, actorID)
	default:
		err = fmt.Errorf("%w: %s", intent.ErrUnknownIntent, m.Intent())
	}
	if err != nil {
		return domain.Action{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Action{}, err
	}
	e.log().Debug("mutation applied",
		zap.String("intent", string(m.Intent())),
		zap.String("action_id", out.ID),
		zap.String("actor_id", actorID))
	return out, nil
}

func (e Engine) create(ctx context.Context, tx *sql.Tx, ref domain.Reference, c intent.Create, actorID string) (domain.Action, error) {
	a := c.Action.Clone()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.State == "" {
		a.State = domain.StateDo
	}
	if a.Priority == "" {
		a.Priority = domain.PriorityMedium
	}
	a.Responsibles = dedupe(a.Responsibles)
	if err := validateAction(ref, a); err != nil {
		return domain.Action{}, err
	}
	if _, err := e.Repo.GetActionTx(ctx, tx, a.ID); err == nil {
		return domain.Action{}, fmt.Errorf("action %s: %w", a.ID, ErrConflict)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Action{}, err
	}
	now := e.now().UTC().Truncate(time.Second)
	a.CreatedAt, a.UpdatedAt = now, now
	a.Date = a.Date.UTC().Truncate(time.Second)
	if err := e.Repo.InsertAction(ctx, tx, a); err != nil {
		return domain.Action{}, err
	}
	payload := events.EventPayload{"title": a.Title, "date": repo.FormatTime(a.Date), "partner": a.Partner, "state": a.State}
	if err := e.Events.Append(ctx, tx, "action.create", "action", a.ID, actorID, payload); err != nil {
		return domain.Action{}, err
	}
	return a, nil
}

func (e Engine) update(ctx context.Context, tx *sql.Tx, ref domain.Reference, u intent.Update, actorID string) (domain.Action, error) {
	current, err := e.Repo.GetActionTx(ctx, tx, u.ID)
	if err != nil {
		return domain.Action{}, err
	}
	if u.Patch.IsEmpty() {
		return current, nil
	}
	next := u.Patch.Apply(current)
	next.Responsibles = dedupe(next.Responsibles)
	next.Date = next.Date.UTC().Truncate(time.Second)
	next.UpdatedAt = e.now().UTC().Truncate(time.Second)
	if err := validateAction(ref, next); err != nil {
		return domain.Action{}, err
	}
	if err := e.Repo.UpdateAction(ctx, tx, next); err != nil {
		return domain.Action{}, err
	}
	payload := events.EventPayload{}
	for k, v := range intent.Form(u) {
		if k != "intent" && k != "id" {
			payload[k] = v
		}
	}
	if err := e.Events.Append(ctx, tx, "action.update", "action", next.ID, actorID, payload); err != nil {
		return domain.Action{}, err
	}
	return next, nil
}

func (e Engine) delete(ctx context.Context, tx *sql.Tx, d intent.Delete, actorID string) (domain.Action, error) {
	current, err := e.Repo.GetActionTx(ctx, tx, d.ID)
	if err != nil {
		return domain.Action{}, err
	}
	if err := e.Repo.DeleteAction(ctx, tx, d.ID); err != nil {
		return domain.Action{}, err
	}
	if err := e.Events.Append(ctx, tx, "action.delete", "action", d.ID, actorID, events.EventPayload{"title": current.Title}); err != nil {
		return domain.Action{}, err
	}
	return current, nil
}

func (e Engine) duplicate(ctx context.Context, tx *sql.Tx, d intent.Duplicate, actorID string) (domain.Action, error) {
	src, err := e.Repo.GetActionTx(ctx, tx, d.SourceID)
	if err != nil {
		return domain.Action{}, err
	}
	newID := d.NewID
	if newID == "" {
		newID = uuid.NewString()
	}
	if _, err := e.Repo.GetActionTx(ctx, tx, newID); err == nil {
		return domain.Action{}, fmt.Errorf("action %s: %w", newID, ErrConflict)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Action{}, err
	}
	copied := src.Clone()
	copied.ID = newID
	now := e.now().UTC().Truncate(time.Second)
	copied.CreatedAt, copied.UpdatedAt = now, now
	if err := e.Repo.InsertAction(ctx, tx, copied); err != nil {
		return domain.Action{}, err
	}
	if err := e.Events.Append(ctx, tx, "action.duplicate", "action", copied.ID, actorID, events.EventPayload{"source_id": src.ID}); err != nil {
		return domain.Action{}, err
	}
	return copied, nil
}

// validateAction checks required fields and that every slug and person is known.
func validateAction(ref domain.Reference, a domain.Action) error {
	if a.Title == "" {
		return intent.FieldError{Field: "title"}
	}
	if a.Date.IsZero() {
		return intent.FieldError{Field: "date"}
	}
	if len(a.Responsibles) == 0 {
		return intent.FieldError{Field: "responsibles", Reason: "at least one responsible is required"}
	}
	checks := []struct {
		field, value string
		known        []string
	}{
		{"category", a.Category, ref.CategorySlugs()},
		{"state", a.State, ref.StateSlugs()},
		{"priority", a.Priority, ref.PrioritySlugs()},
		{"partner", a.Partner, ref.PartnerSlugs()},
	}
	for _, c := range checks {
		if c.value == "" {
			return intent.FieldError{Field: c.field}
		}
		if !slices.Contains(c.known, c.value) {
			return intent.FieldError{Field: c.field, Reason: fmt.Sprintf("unknown %s %q", c.field, c.value)}
		}
	}
	for _, id := range a.Responsibles {
		if _, ok := ref.Person(id); !ok {
			return intent.FieldError{Field: "responsibles", Reason: fmt.Sprintf("unknown person %q", id)}
		}
	}
	return nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// UpsertPartner stores p and its authorised people. The id defaults to the slug.
func (e Engine) UpsertPartner(ctx context.Context, p domain.Partner, actorID string) (domain.Partner, error) {
	if p.Slug == "" {
		return domain.Partner{}, intent.FieldError{Field: "slug"}
	}
	if p.Title == "" {
		return domain.Partner{}, intent.FieldError{Field: "title"}
	}
	if p.ID == "" {
		p.ID = p.Slug
	}
	p.Users = dedupe(p.Users)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Partner{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertPartner(ctx, tx, p); err != nil {
		return domain.Partner{}, err
	}
	if err := e.Events.Append(ctx, tx, "partner.upsert", "partner", p.ID, actorID, events.EventPayload{"slug": p.Slug, "users": p.Users}); err != nil {
		return domain.Partner{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Partner{}, err
	}
	return p, nil
}

func (e Engine) UpsertPerson(ctx context.Context, p domain.Person, actorID string) (domain.Person, error) {
	if p.ID == "" {
		return domain.Person{}, intent.FieldError{Field: "id"}
	}
	if p.Name == "" {
		return domain.Person{}, intent.FieldError{Field: "name"}
	}
	if p.Role < 0 {
		return domain.Person{}, intent.FieldError{Field: "role", Reason: "must not be negative"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Person{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertPerson(ctx, tx, p); err != nil {
		return domain.Person{}, err
	}
	if err := e.Events.Append(ctx, tx, "person.upsert", "person", p.ID, actorID, events.EventPayload{"role": p.Role, "admin": p.Admin}); err != nil {
		return domain.Person{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Person{}, err
	}
	return p, nil
}
