package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"actionboard/internal/config"
	"actionboard/internal/db"
	"actionboard/internal/domain"
	"actionboard/internal/migrate"
	"actionboard/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn, Dialect: dialect}
	ctx := context.Background()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := r.SeedReference(ctx, tx, config.Default().Reference()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := r.UpsertPerson(ctx, tx, domain.Person{ID: "ana", Name: "Ana", Role: 2}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpsertPerson(ctx, tx, domain.Person{ID: "bo", Name: "Bo"}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpsertPartner(ctx, tx, domain.Partner{ID: "acme", Slug: "acme", Title: "Acme", Users: []string{"ana"}}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return r
}

func insert(t *testing.T, r repo.Repo, actions ...domain.Action) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	for _, a := range actions {
		if err := r.InsertAction(ctx, tx, a); err != nil {
			t.Fatalf("insert %s: %v", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func action(id string, date time.Time, responsibles ...string) domain.Action {
	return domain.Action{
		ID: id, Title: "Action " + id, Category: "post", State: domain.StateDo, Priority: domain.PriorityMedium,
		Date: date, Partner: "acme", Responsibles: responsibles, CreatedAt: date, UpdatedAt: date,
	}
}

func TestReferenceRoundTrip(t *testing.T) {
	r := newRepo(t)
	ref, err := r.LoadReference(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ref.StateSlugs(); len(got) != 6 || got[0] != domain.StateIdea || got[5] != domain.StateFinished {
		t.Fatalf("unexpected states %v", got)
	}
	if len(ref.Categories) != 9 || ref.Categories[0].Area != "content" {
		t.Fatalf("unexpected categories %+v", ref.Categories)
	}
	if len(ref.Partners) != 1 || !ref.Partners[0].Authorizes("ana") || ref.Partners[0].Authorizes("bo") {
		t.Fatalf("unexpected partners %+v", ref.Partners)
	}
	if p, ok := ref.Person("ana"); !ok || p.Role != 2 {
		t.Fatalf("person ana missing: %+v", p)
	}
	n, err := r.CountStates(context.Background())
	if err != nil || n != 6 {
		t.Fatalf("count states = %d, %v", n, err)
	}
}

func TestActionRoundTripKeepsChildren(t *testing.T) {
	r := newRepo(t)
	date := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	a := action("a1", date, "bo", "ana")
	a.Files = []string{"https://cdn/x.png", "https://cdn/y.png"}
	a.Caption = "hello"
	insert(t, r, a)

	got, err := r.GetAction(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Date.Equal(date) || got.Caption != "hello" {
		t.Fatalf("unexpected action %+v", got)
	}
	if len(got.Responsibles) != 2 || got.Responsibles[0] != "bo" || got.Responsibles[1] != "ana" {
		t.Fatalf("responsibles order lost: %v", got.Responsibles)
	}
	if len(got.Files) != 2 || got.Files[1] != "https://cdn/y.png" {
		t.Fatalf("files lost: %v", got.Files)
	}
	if _, err := r.GetAction(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndDeleteAction(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	date := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	insert(t, r, action("a1", date, "ana"))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	updated := action("a1", date.AddDate(0, 0, 1), "bo")
	updated.State = domain.StateReview
	if err := r.UpdateAction(ctx, tx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := r.UpdateAction(ctx, tx, action("nope", date, "ana")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetAction(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.StateReview || got.Responsibles[0] != "bo" || got.Date.Day() != 11 {
		t.Fatalf("update not stored: %+v", got)
	}

	tx, err = r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteAction(ctx, tx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.DeleteAction(ctx, tx, "a1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	list, err := r.ListActions(ctx, repo.ActionFilter{})
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty snapshot, got %v %v", list, err)
	}
}

func TestListActionsFilters(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	march5 := action("m5", base.AddDate(0, 0, 4), "ana")
	march1 := action("m1", base, "bo")
	april := action("ap", base.AddDate(0, 1, 0), "ana", "bo")
	april.State = domain.StateFinished
	insert(t, r, march5, march1, april)

	all, err := r.ListActions(ctx, repo.ActionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "m1" || all[1].ID != "m5" || all[2].ID != "ap" {
		t.Fatalf("expected date order, got %v", ids(all))
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	march, err := r.ListActions(ctx, repo.ActionFilter{From: &from, To: &to})
	if err != nil || len(march) != 2 {
		t.Fatalf("month filter: %v %v", ids(march), err)
	}

	mine, err := r.ListActions(ctx, repo.ActionFilter{Responsible: "bo"})
	if err != nil || len(mine) != 2 || mine[0].ID != "m1" || mine[1].ID != "ap" {
		t.Fatalf("responsible filter: %v %v", ids(mine), err)
	}
	if len(mine[1].Responsibles) != 2 {
		t.Fatalf("filter must not trim responsibles: %v", mine[1].Responsibles)
	}

	finished, err := r.ListActions(ctx, repo.ActionFilter{State: domain.StateFinished, Partners: []string{"acme", "other"}})
	if err != nil || len(finished) != 1 || finished[0].ID != "ap" {
		t.Fatalf("state filter: %v %v", ids(finished), err)
	}

	notArchived := false
	live, err := r.ListActions(ctx, repo.ActionFilter{Archived: &notArchived, Category: "reels"})
	if err != nil || len(live) != 0 {
		t.Fatalf("category filter: %v %v", ids(live), err)
	}

	counts, err := r.CountActionsByState(ctx)
	if err != nil || counts[domain.StateDo] != 2 || counts[domain.StateFinished] != 1 {
		t.Fatalf("counts %v %v", counts, err)
	}
}

func ids(list []domain.Action) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
