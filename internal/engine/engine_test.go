package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"actionboard/internal/board"
	"actionboard/internal/config"
	"actionboard/internal/db"
	"actionboard/internal/domain"
	"actionboard/internal/engine"
	"actionboard/internal/engine/auth"
	"actionboard/internal/intent"
	"actionboard/internal/migrate"
	"actionboard/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

var fixedNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, dialect, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, dialect, config.Default())
	eng.Now = func() time.Time { return fixedNow }
	ctx := context.Background()
	if err := eng.SeedReference(ctx, "tester"); err != nil {
		t.Fatalf("seed reference: %v", err)
	}
	for _, p := range []domain.Person{
		{ID: "ana", Name: "Ana", Role: 1},
		{ID: "bo", Name: "Bo"},
		{ID: "root", Name: "Root", Admin: true},
	} {
		if _, err := eng.UpsertPerson(ctx, p, "tester"); err != nil {
			t.Fatalf("person %s: %v", p.ID, err)
		}
	}
	for _, p := range []domain.Partner{
		{Slug: "acme", Title: "Acme", Users: []string{"ana", "bo"}},
		{Slug: "globex", Title: "Globex", Users: []string{"ana"}},
	} {
		if _, err := eng.UpsertPartner(ctx, p, "tester"); err != nil {
			t.Fatalf("partner %s: %v", p.Slug, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) create(t *testing.T, form map[string]string) domain.Action {
	t.Helper()
	form["intent"] = "create"
	m, err := intent.Parse(form)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a, err := env.Engine.Apply(env.Ctx, m, "tester")
	if err != nil {
		t.Fatalf("apply create: %v", err)
	}
	return a
}

func TestCreateUpdateDuplicateDelete(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, map[string]string{
		"id": "a1", "title": "Launch post", "date": "2024-03-14T09:00", "partner": "acme",
		"category": "post", "responsibles": "ana, bo, ana",
	})
	if a.State != domain.StateDo || a.Priority != domain.PriorityMedium {
		t.Fatalf("defaults not applied: %+v", a)
	}
	if len(a.Responsibles) != 2 {
		t.Fatalf("responsibles should be deduplicated: %v", a.Responsibles)
	}
	if !a.CreatedAt.Equal(fixedNow) {
		t.Fatalf("created_at = %v", a.CreatedAt)
	}

	// drag-and-drop reschedule is a date-only update
	m, err := intent.Parse(map[string]string{"intent": "update", "id": "a1", "date": "2024-03-20T09:00"})
	if err != nil {
		t.Fatal(err)
	}
	moved, err := env.Engine.Apply(env.Ctx, m, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if moved.Date.Day() != 20 || moved.Title != "Launch post" || len(moved.Responsibles) != 2 {
		t.Fatalf("update should only move the date: %+v", moved)
	}

	dup, err := env.Engine.Apply(env.Ctx, intent.Duplicate{SourceID: "a1", NewID: "a2"}, "tester")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.ID != "a2" || dup.Title != moved.Title || !dup.Date.Equal(moved.Date) {
		t.Fatalf("unexpected duplicate %+v", dup)
	}
	if _, err := env.Engine.Apply(env.Ctx, intent.Duplicate{SourceID: "a1", NewID: "a2"}, "tester"); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := env.Engine.Apply(env.Ctx, intent.Delete{ID: "a1"}, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetAction(env.Ctx, "a1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("a1 should be gone: %v", err)
	}
	if _, err := env.Engine.Apply(env.Ctx, intent.Delete{ID: "a1"}, "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete should be not found: %v", err)
	}

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, repo.EventFilter{EntityKind: "action"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"action.delete", "action.duplicate", "action.update", "action.create"}
	if len(evts) != len(want) {
		t.Fatalf("expected %d action events, got %d", len(want), len(evts))
	}
	for i, typ := range want {
		if evts[i].Type != typ {
			t.Fatalf("event %d = %s, want %s", i, evts[i].Type, typ)
		}
	}
}

func TestApplyRejectsUnknownReferences(t *testing.T) {
	env := newTestEnv(t)
	base := intent.Create{Action: domain.Action{
		ID: "x", Title: "x", Date: fixedNow, Partner: "acme", Category: "post",
		State: domain.StateDo, Priority: domain.PriorityLow, Responsibles: []string{"ana"},
	}}
	cases := map[string]func(a *domain.Action){
		"category":     func(a *domain.Action) { a.Category = "podcast" },
		"state":        func(a *domain.Action) { a.State = "blocked" },
		"partner":      func(a *domain.Action) { a.Partner = "initech" },
		"responsibles": func(a *domain.Action) { a.Responsibles = []string{"ghost"} },
	}
	for field, mutate := range cases {
		c := intent.Create{Action: base.Action.Clone()}
		mutate(&c.Action)
		_, err := env.Engine.Apply(env.Ctx, c, "tester")
		var fe intent.FieldError
		if !errors.As(err, &fe) || fe.Field != field {
			t.Fatalf("%s: expected field error, got %v", field, err)
		}
	}
	if _, err := env.Engine.Apply(env.Ctx, base, "tester"); err != nil {
		t.Fatalf("valid create: %v", err)
	}
	if _, err := env.Engine.Apply(env.Ctx, base, "tester"); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict on second create, got %v", err)
	}
	empty := []string{}
	_, err := env.Engine.Apply(env.Ctx, intent.Update{ID: "x", Patch: intent.Patch{Responsibles: empty}}, "tester")
	var fe intent.FieldError
	if !errors.As(err, &fe) || fe.Field != "responsibles" {
		t.Fatalf("responsibles must never become empty, got %v", err)
	}
}

func TestViewReconcilesPendingState(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, map[string]string{"id": "a1", "title": "One", "date": "2025-01-01", "partner": "acme", "category": "post", "responsibles": "ana"})
	env.create(t, map[string]string{"id": "a2", "title": "Two", "date": "2024-01-01", "partner": "acme", "category": "task", "responsibles": "ana", "state": "finished"})

	doing := domain.StateDoing
	v, err := env.Engine.View(env.Ctx, engine.ViewRequest{
		View:      engine.ViewKanban,
		Pending:   []intent.Mutation{intent.Update{ID: "a1", Patch: intent.Patch{State: &doing}}},
		Deletions: []string{"a2"},
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(v.Actions) != 1 || v.Actions[0].ID != "a1" || v.Actions[0].State != domain.StateDoing {
		t.Fatalf("unexpected actions %+v", v.Actions)
	}
	if v.Actions[0].Date.Year() != 2025 {
		t.Fatalf("pending update must keep the stored date: %v", v.Actions[0].Date)
	}
	if len(v.Groups) != 6 || v.Groups[2].Key != domain.StateDoing || len(v.Groups[2].Actions) != 1 {
		t.Fatalf("unexpected kanban %+v", v.Groups)
	}
	for _, g := range v.Groups {
		if g.Actions == nil {
			t.Fatalf("column %s is nil", g.Key)
		}
	}
}

func TestViewFilterCoversPendingMutations(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, map[string]string{"id": "a1", "title": "One", "date": "2024-03-14", "partner": "acme", "category": "post", "responsibles": "ana"})
	env.create(t, map[string]string{"id": "a2", "title": "Two", "date": "2024-03-15", "partner": "acme", "category": "post", "responsibles": "ana"})

	pendingCreate := func(id, partner string) intent.Create {
		return intent.Create{Action: domain.Action{
			ID: id, Title: id, Date: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), Partner: partner,
			Category: "post", State: domain.StateDo, Priority: domain.PriorityMedium, Responsibles: []string{"ana"},
		}}
	}
	globex := "globex"
	v, err := env.Engine.View(env.Ctx, engine.ViewRequest{
		View:   engine.ViewKanban,
		Filter: repo.ActionFilter{Partner: "acme"},
		Pending: []intent.Mutation{
			pendingCreate("p-acme", "acme"),
			pendingCreate("p-globex", "globex"),
			intent.Duplicate{SourceID: "a1", NewID: "a1-copy"},
			intent.Update{ID: "a2", Patch: intent.Patch{Partner: &globex}},
		},
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	got := map[string]bool{}
	for _, a := range v.Actions {
		got[a.ID] = true
	}
	want := map[string]bool{"a1": true, "p-acme": true, "a1-copy": true}
	if len(got) != len(want) {
		t.Fatalf("unexpected actions %v", got)
	}
	for id := range want {
		if !got[id] {
			t.Fatalf("missing %s in %v", id, got)
		}
	}
}

func TestViewMonthAndDerivedSets(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, map[string]string{"id": "late", "title": "Late", "date": "2024-03-01T09:00", "partner": "acme", "category": "post", "responsibles": "bo", "priority": "high"})
	env.create(t, map[string]string{"id": "today", "title": "Today", "date": "2024-03-13T15:00", "partner": "globex", "category": "reels", "responsibles": "ana"})
	env.create(t, map[string]string{"id": "next", "title": "Next", "date": "2024-03-14T08:00", "partner": "acme", "category": "meeting", "responsibles": "ana"})

	v, err := env.Engine.View(env.Ctx, engine.ViewRequest{View: engine.ViewMonth, Sort: board.SortTime})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	// March 2024 starts on a Friday and ends on a Sunday; weeks start on Sunday.
	if len(v.Days) != 42 {
		t.Fatalf("expected 6 week rows, got %d days", len(v.Days))
	}
	if len(v.Sets.Overdue) != 1 || v.Sets.Overdue[0].ID != "late" {
		t.Fatalf("overdue = %+v", v.Sets.Overdue)
	}
	if len(v.Sets.Today) != 1 || len(v.Sets.Tomorrow) != 1 || len(v.Sets.Urgent) != 1 {
		t.Fatalf("unexpected sets %+v", v.Sets)
	}
	if len(v.Sets.Feed) != 2 || v.Sets.Feed[0].ID != "today" {
		t.Fatalf("feed should be newest first: %+v", v.Sets.Feed)
	}

	day, err := env.Engine.View(env.Ctx, engine.ViewRequest{View: engine.ViewDay})
	if err != nil {
		t.Fatal(err)
	}
	if len(day.Hours) != 24 || len(day.Hours[15].Actions) != 1 {
		t.Fatalf("unexpected hours %+v", day.Hours)
	}
}

func TestViewGating(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, map[string]string{"id": "a", "title": "A", "date": "2024-03-13T09:00", "partner": "acme", "category": "post", "responsibles": "ana"})
	env.create(t, map[string]string{"id": "g", "title": "G", "date": "2024-03-13T10:00", "partner": "globex", "category": "post", "responsibles": "ana"})

	_, err := env.Engine.View(env.Ctx, engine.ViewRequest{View: engine.ViewFeed, PersonID: "bo"})
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("bo should not open the feed: %v", err)
	}

	v, err := env.Engine.View(env.Ctx, engine.ViewRequest{View: engine.ViewDashboard, PersonID: "bo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Actions) != 1 || v.Actions[0].Partner != "acme" {
		t.Fatalf("bo should only see acme: %+v", v.Actions)
	}
	if len(v.Sets.Feed) != 0 {
		t.Fatalf("feed set must be hidden below the feed role")
	}

	v, err = env.Engine.View(env.Ctx, engine.ViewRequest{View: engine.ViewFeed, PersonID: "root"})
	if err != nil || len(v.Actions) != 2 {
		t.Fatalf("admin sees everything: %v %+v", err, v.Actions)
	}

	if _, err := env.Engine.View(env.Ctx, engine.ViewRequest{PersonID: "nobody"}); !errors.As(err, &forbidden) {
		t.Fatalf("unknown person should be forbidden: %v", err)
	}
	if _, err := env.Engine.View(env.Ctx, engine.ViewRequest{View: "gantt"}); err == nil {
		t.Fatalf("unknown view should fail")
	}
}
