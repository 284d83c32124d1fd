package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"actionboard/internal/board"
	"actionboard/internal/derive"
	"actionboard/internal/domain"
	"actionboard/internal/engine/auth"
	"actionboard/internal/intent"
	"actionboard/internal/reconcile"
	"actionboard/internal/repo"
)

// ViewKind names a dashboard section. It doubles as the section key for role gating.
type ViewKind string

const (
	ViewDashboard  ViewKind = "dashboard"
	ViewMonth      ViewKind = "month"
	ViewWeek       ViewKind = "week"
	ViewDay        ViewKind = "day"
	ViewKanban     ViewKind = "kanban"
	ViewCategories ViewKind = "categories"
	ViewPartners   ViewKind = "partners"
	ViewFeed       ViewKind = "feed"
)

var viewKinds = []ViewKind{ViewDashboard, ViewMonth, ViewWeek, ViewDay, ViewKanban, ViewCategories, ViewPartners, ViewFeed}

func ParseViewKind(s string) (ViewKind, error) {
	if s == "" {
		return ViewDashboard, nil
	}
	for _, k := range viewKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// ViewRequest carries everything a view depends on. Nothing is read from ambient state.
type ViewRequest struct {
	View      ViewKind
	Filter    repo.ActionFilter
	Pending   []intent.Mutation
	Deletions []string
	// Now defaults to the engine clock.
	Now time.Time
	// Anchor selects the month, week or day shown; defaults to Now.
	Anchor time.Time
	Sort   board.SortKey
	Desc   bool
	// PersonID enables role gating and partner visibility when set.
	PersonID string
}

type View struct {
	Kind    ViewKind        `json:"kind"`
	Now     time.Time       `json:"now"`
	Anchor  time.Time       `json:"anchor"`
	Actions []domain.Action `json:"actions"`
	Sets    derive.Sets     `json:"sets"`
	Days    []board.Day     `json:"days,omitempty"`
	Hours   []board.Hour    `json:"hours,omitempty"`
	Groups  []board.Group   `json:"groups,omitempty"`
}

// View loads the snapshot, reconciles it with the pending state and builds the requested read model.
func (e Engine) View(ctx context.Context, req ViewRequest) (View, error) {
	if req.View == "" {
		req.View = ViewDashboard
	}
	if _, err := ParseViewKind(string(req.View)); err != nil {
		return View{}, err
	}
	loc := e.Config.Location()
	now := req.Now
	if now.IsZero() {
		now = e.now()
	}
	now = now.In(loc)
	anchor := req.Anchor
	if anchor.IsZero() {
		anchor = now
	}
	anchor = anchor.In(loc)

	var (
		snapshot []domain.Action
		ref      domain.Reference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = e.Repo.ListActions(gctx, req.Filter)
		if err != nil {
			return fmt.Errorf("load actions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ref, err = e.Repo.LoadReference(gctx)
		if err != nil {
			return fmt.Errorf("load reference: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	actions := reconcile.Reconcile(snapshot, req.Pending, req.Deletions)
	actions = slices.DeleteFunc(actions, func(a domain.Action) bool { return !req.Filter.Match(a) })
	feedVisible := true
	if req.PersonID != "" {
		person, ok := ref.Person(req.PersonID)
		if !ok {
			return View{}, auth.UnknownPerson(req.PersonID)
		}
		if err := auth.RequireSection(person, string(req.View), e.Config); err != nil {
			return View{}, err
		}
		feedVisible = auth.CanView(person, string(ViewFeed), e.Config)
		actions = auth.FilterPartners(actions, auth.VisiblePartners(person, ref.Partners))
	}

	weekStart := e.Config.WeekStart()
	var feedCategories []string
	if e.Config != nil {
		feedCategories = e.Config.ContentCategories
	}
	sets := derive.All(actions, now, weekStart, feedCategories)
	if !feedVisible {
		sets.Feed = []domain.Action{}
	}

	sorted := board.Sort(actions, req.Sort, ref, req.Desc)
	out := View{Kind: req.View, Now: now, Anchor: anchor, Actions: sorted, Sets: sets}
	switch req.View {
	case ViewMonth:
		out.Days = board.MonthGrid(sorted, anchor, weekStart)
	case ViewWeek:
		out.Days = board.WeekDays(sorted, anchor, weekStart)
	case ViewDay:
		out.Hours = board.ByHour(sorted, anchor)
	case ViewKanban:
		out.Groups = board.ByState(sorted, ref.StateSlugs())
	case ViewCategories:
		out.Groups = board.ByCategory(sorted, ref.CategorySlugs())
	case ViewPartners:
		out.Groups = board.ByPartner(sorted, ref.PartnerSlugs())
	case ViewFeed:
		out.Actions = sets.Feed
	}
	e.log().Debug("view built",
		zap.String("view", string(req.View)),
		zap.Int("snapshot", len(snapshot)),
		zap.Int("pending", len(req.Pending)),
		zap.Int("deletions", len(req.Deletions)),
		zap.Int("actions", len(out.Actions)))
	return out, nil
}
