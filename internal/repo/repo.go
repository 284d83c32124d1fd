package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"actionboard/internal/db"
	"actionboard/internal/domain"
)

type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(query string) string {
	return r.Dialect.Rebind(query)
}

// FormatTime is the stored form of every timestamp: second precision, UTC.
// Fixed width keeps string comparison chronological.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// ActionFilter narrows a snapshot. Zero fields do not filter.
type ActionFilter struct {
	From        *time.Time
	To          *time.Time
	Responsible string
	Partner     string
	Partners    []string
	Category    string
	State       string
	Archived    *bool
}

// Match reports whether a passes the filter, using the same rules as ListActions.
func (f ActionFilter) Match(a domain.Action) bool {
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && !a.Date.Before(*f.To) {
		return false
	}
	if f.Responsible != "" && !slices.Contains(a.Responsibles, f.Responsible) {
		return false
	}
	if f.Partner != "" && a.Partner != f.Partner {
		return false
	}
	if len(f.Partners) > 0 && !slices.Contains(f.Partners, a.Partner) {
		return false
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	if f.State != "" && a.State != f.State {
		return false
	}
	return f.Archived == nil || a.Archived == *f.Archived
}

const actionColumns = `id,title,COALESCE(description,''),category,state,priority,date,partner,COALESCE(caption,''),archived,created_at,updated_at`

func scanAction(scan func(dest ...any) error) (domain.Action, error) {
	var a domain.Action
	var date, created, updated string
	if err := scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.State, &a.Priority, &date, &a.Partner, &a.Caption, &a.Archived, &created, &updated); err != nil {
		return a, err
	}
	var err error
	if a.Date, err = parseTime(date); err != nil {
		return a, fmt.Errorf("action %s date: %w", a.ID, err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return a, fmt.Errorf("action %s created_at: %w", a.ID, err)
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return a, fmt.Errorf("action %s updated_at: %w", a.ID, err)
	}
	return a, nil
}

func (r Repo) InsertAction(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO actions(id,title,description,category,state,priority,date,partner,caption,archived,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`),
		a.ID, a.Title, nullable(a.Description), a.Category, a.State, a.Priority, FormatTime(a.Date), a.Partner, nullable(a.Caption), a.Archived, FormatTime(a.CreatedAt), FormatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return r.replaceChildren(ctx, tx, a)
}

// UpdateAction overwrites every column and child row of a.
func (r Repo) UpdateAction(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE actions SET title=?,description=?,category=?,state=?,priority=?,date=?,partner=?,caption=?,archived=?,updated_at=? WHERE id=?`),
		a.Title, nullable(a.Description), a.Category, a.State, a.Priority, FormatTime(a.Date), a.Partner, nullable(a.Caption), a.Archived, FormatTime(a.UpdatedAt), a.ID)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return r.replaceChildren(ctx, tx, a)
}

func (r Repo) replaceChildren(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM action_responsibles WHERE action_id=?`), a.ID); err != nil {
		return err
	}
	for i, person := range a.Responsibles {
		if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO action_responsibles(action_id,person_id,position) VALUES (?,?,?)`), a.ID, person, i); err != nil {
			return fmt.Errorf("insert responsible: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM action_files WHERE action_id=?`), a.ID); err != nil {
		return err
	}
	for i, url := range a.Files {
		if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO action_files(action_id,position,url) VALUES (?,?,?)`), a.ID, i, url); err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
	}
	return nil
}

func (r Repo) DeleteAction(ctx context.Context, tx *sql.Tx, id string) error {
	// children are removed explicitly so sqlite without foreign keys stays clean
	for _, stmt := range []string{`DELETE FROM action_responsibles WHERE action_id=?`, `DELETE FROM action_files WHERE action_id=?`} {
		if _, err := tx.ExecContext(ctx, r.q(stmt), id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM actions WHERE id=?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAction(ctx context.Context, id string) (domain.Action, error) {
	return r.getAction(ctx, r.DB, id)
}

func (r Repo) GetActionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Action, error) {
	return r.getAction(ctx, tx, id)
}

func (r Repo) getAction(ctx context.Context, q querier, id string) (domain.Action, error) {
	row := q.QueryRowContext(ctx, r.q(`SELECT `+actionColumns+` FROM actions WHERE id=?`), id)
	a, err := scanAction(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Action{}, ErrNotFound
	}
	if err != nil {
		return domain.Action{}, err
	}
	list := []domain.Action{a}
	if err := r.attachChildren(ctx, q, list); err != nil {
		return domain.Action{}, err
	}
	return list[0], nil
}

// ListActions returns the snapshot matching f ordered by date then id.
func (r Repo) ListActions(ctx context.Context, f ActionFilter) ([]domain.Action, error) {
	var (
		clauses []string
		args    []any
	)
	if f.From != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, FormatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "date < ?")
		args = append(args, FormatTime(*f.To))
	}
	if f.Responsible != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM action_responsibles ar WHERE ar.action_id = actions.id AND ar.person_id = ?)")
		args = append(args, f.Responsible)
	}
	if f.Partner != "" {
		clauses = append(clauses, "partner = ?")
		args = append(args, f.Partner)
	}
	if len(f.Partners) > 0 {
		clauses = append(clauses, "partner IN ("+placeholders(len(f.Partners))+")")
		for _, p := range f.Partners {
			args = append(args, p)
		}
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.State != "" {
		clauses = append(clauses, "state = ?")
		args = append(args, f.State)
	}
	if f.Archived != nil {
		clauses = append(clauses, "archived = ?")
		args = append(args, *f.Archived)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT `+actionColumns+` FROM actions`+where+` ORDER BY date, id`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Action{}
	for rows.Next() {
		a, err := scanAction(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachChildren(ctx, r.DB, res); err != nil {
		return nil, err
	}
	return res, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// attachChildren loads responsibles and files for actions in two queries.
func (r Repo) attachChildren(ctx context.Context, q querier, actions []domain.Action) error {
	if len(actions) == 0 {
		return nil
	}
	index := make(map[string]int, len(actions))
	args := make([]any, 0, len(actions))
	for i, a := range actions {
		index[a.ID] = i
		args = append(args, a.ID)
	}
	in := placeholders(len(actions))

	rows, err := q.QueryContext(ctx, r.q(`SELECT action_id,person_id FROM action_responsibles WHERE action_id IN (`+in+`) ORDER BY action_id, position`), args...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var actionID, personID string
		if err := rows.Scan(&actionID, &personID); err != nil {
			rows.Close()
			return err
		}
		i := index[actionID]
		actions[i].Responsibles = append(actions[i].Responsibles, personID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, r.q(`SELECT action_id,url FROM action_files WHERE action_id IN (`+in+`) ORDER BY action_id, position`), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var actionID, url string
		if err := rows.Scan(&actionID, &url); err != nil {
			return err
		}
		i := index[actionID]
		actions[i].Files = append(actions[i].Files, url)
	}
	for i := range actions {
		if actions[i].Responsibles == nil {
			actions[i].Responsibles = []string{}
		}
	}
	return rows.Err()
}

// CountActionsByState counts non-archived actions per state.
func (r Repo) CountActionsByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT state, COUNT(*) FROM actions WHERE archived = ? GROUP BY state`), false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}
