package repo

import (
	"context"
	"database/sql"
	"fmt"

	"actionboard/internal/domain"
)

// SeedReference upserts areas, categories, states and priorities. Existing
// rows keep their id; title, order, colour and shortcut follow ref.
func (r Repo) SeedReference(ctx context.Context, tx *sql.Tx, ref domain.Reference) error {
	for _, a := range ref.Areas {
		if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO areas(id,slug,title,sort_order,shortcut) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET slug=excluded.slug,title=excluded.title,sort_order=excluded.sort_order,shortcut=excluded.shortcut`),
			a.ID, a.Slug, a.Title, a.SortOrder, nullable(a.Shortcut)); err != nil {
			return fmt.Errorf("seed area %s: %w", a.Slug, err)
		}
	}
	for _, c := range ref.Categories {
		if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO categories(id,slug,title,area_id,sort_order,shortcut) VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET slug=excluded.slug,title=excluded.title,area_id=excluded.area_id,sort_order=excluded.sort_order,shortcut=excluded.shortcut`),
			c.ID, c.Slug, c.Title, c.Area, c.SortOrder, nullable(c.Shortcut)); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Slug, err)
		}
	}
	for _, s := range ref.States {
		if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO states(id,slug,title,color,sort_order,shortcut) VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET slug=excluded.slug,title=excluded.title,color=excluded.color,sort_order=excluded.sort_order,shortcut=excluded.shortcut`),
			s.ID, s.Slug, s.Title, nullable(s.Color), s.SortOrder, nullable(s.Shortcut)); err != nil {
			return fmt.Errorf("seed state %s: %w", s.Slug, err)
		}
	}
	for _, p := range ref.Priorities {
		if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO priorities(id,slug,title,color,sort_order,shortcut) VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET slug=excluded.slug,title=excluded.title,color=excluded.color,sort_order=excluded.sort_order,shortcut=excluded.shortcut`),
			p.ID, p.Slug, p.Title, nullable(p.Color), p.SortOrder, nullable(p.Shortcut)); err != nil {
			return fmt.Errorf("seed priority %s: %w", p.Slug, err)
		}
	}
	return nil
}

// CountStates reports how many states are stored; zero means the workspace was never seeded.
func (r Repo) CountStates(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM states`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LoadReference reads every lookup table in declared order.
func (r Repo) LoadReference(ctx context.Context) (domain.Reference, error) {
	ref := domain.Reference{
		Areas:      []domain.Area{},
		Categories: []domain.Category{},
		States:     []domain.State{},
		Priorities: []domain.Priority{},
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,slug,title,sort_order,COALESCE(shortcut,'') FROM areas ORDER BY sort_order, slug`)
	if err != nil {
		return ref, err
	}
	for rows.Next() {
		var a domain.Area
		if err := rows.Scan(&a.ID, &a.Slug, &a.Title, &a.SortOrder, &a.Shortcut); err != nil {
			rows.Close()
			return ref, err
		}
		ref.Areas = append(ref.Areas, a)
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx, `SELECT id,slug,title,area_id,sort_order,COALESCE(shortcut,'') FROM categories ORDER BY sort_order, slug`)
	if err != nil {
		return ref, err
	}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title, &c.Area, &c.SortOrder, &c.Shortcut); err != nil {
			rows.Close()
			return ref, err
		}
		ref.Categories = append(ref.Categories, c)
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx, `SELECT id,slug,title,COALESCE(color,''),sort_order,COALESCE(shortcut,'') FROM states ORDER BY sort_order, slug`)
	if err != nil {
		return ref, err
	}
	for rows.Next() {
		var s domain.State
		if err := rows.Scan(&s.ID, &s.Slug, &s.Title, &s.Color, &s.SortOrder, &s.Shortcut); err != nil {
			rows.Close()
			return ref, err
		}
		ref.States = append(ref.States, s)
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx, `SELECT id,slug,title,COALESCE(color,''),sort_order,COALESCE(shortcut,'') FROM priorities ORDER BY sort_order, slug`)
	if err != nil {
		return ref, err
	}
	for rows.Next() {
		var p domain.Priority
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Color, &p.SortOrder, &p.Shortcut); err != nil {
			rows.Close()
			return ref, err
		}
		ref.Priorities = append(ref.Priorities, p)
	}
	rows.Close()

	if ref.Partners, err = r.ListPartners(ctx, true); err != nil {
		return ref, err
	}
	if ref.People, err = r.ListPeople(ctx); err != nil {
		return ref, err
	}
	return ref, nil
}

func (r Repo) UpsertPartner(ctx context.Context, tx *sql.Tx, p domain.Partner) error {
	if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO partners(id,slug,title,short,background,foreground,archived,sort_order) VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET slug=excluded.slug,title=excluded.title,short=excluded.short,background=excluded.background,foreground=excluded.foreground,archived=excluded.archived,sort_order=excluded.sort_order`),
		p.ID, p.Slug, p.Title, nullable(p.Short), nullable(p.Background), nullable(p.Foreground), p.Archived, p.SortOrder); err != nil {
		return fmt.Errorf("upsert partner: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM partner_people WHERE partner_id=?`), p.ID); err != nil {
		return err
	}
	for _, person := range p.Users {
		if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO partner_people(partner_id,person_id) VALUES (?,?)`), p.ID, person); err != nil {
			return fmt.Errorf("authorise %s on %s: %w", person, p.Slug, err)
		}
	}
	return nil
}

// ListPartners returns partners ordered for display, with their authorised people.
func (r Repo) ListPartners(ctx context.Context, includeArchived bool) ([]domain.Partner, error) {
	query := `SELECT id,slug,title,COALESCE(short,''),COALESCE(background,''),COALESCE(foreground,''),archived,sort_order FROM partners`
	var args []any
	if !includeArchived {
		query += ` WHERE archived = ?`
		args = append(args, false)
	}
	rows, err := r.DB.QueryContext(ctx, r.q(query+` ORDER BY sort_order, slug`), args...)
	if err != nil {
		return nil, err
	}
	res := []domain.Partner{}
	index := map[string]int{}
	for rows.Next() {
		var p domain.Partner
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Short, &p.Background, &p.Foreground, &p.Archived, &p.SortOrder); err != nil {
			rows.Close()
			return nil, err
		}
		p.Users = []string{}
		index[p.ID] = len(res)
		res = append(res, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.DB.QueryContext(ctx, `SELECT partner_id,person_id FROM partner_people ORDER BY partner_id, person_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var partnerID, personID string
		if err := rows.Scan(&partnerID, &personID); err != nil {
			return nil, err
		}
		if i, ok := index[partnerID]; ok {
			res[i].Users = append(res[i].Users, personID)
		}
	}
	return res, rows.Err()
}

func (r Repo) UpsertPerson(ctx context.Context, tx *sql.Tx, p domain.Person) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO people(id,name,short,initials,image,admin,role) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name,short=excluded.short,initials=excluded.initials,image=excluded.image,admin=excluded.admin,role=excluded.role`),
		p.ID, p.Name, nullable(p.Short), nullable(p.Initials), nullable(p.Image), p.Admin, p.Role)
	if err != nil {
		return fmt.Errorf("upsert person: %w", err)
	}
	return nil
}

const personColumns = `id,name,COALESCE(short,''),COALESCE(initials,''),COALESCE(image,''),admin,role`

func (r Repo) ListPeople(ctx context.Context) ([]domain.Person, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+personColumns+` FROM people ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Person{}
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Short, &p.Initials, &p.Image, &p.Admin, &p.Role); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	var p domain.Person
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT `+personColumns+` FROM people WHERE id=?`), id).
		Scan(&p.ID, &p.Name, &p.Short, &p.Initials, &p.Image, &p.Admin, &p.Role)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}
