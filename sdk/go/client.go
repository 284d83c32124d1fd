package actionboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"actionboard/internal/domain"
	"actionboard/internal/intent"
)

// Client is a minimal Actionboard HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// PersonID is sent as X-Person-Id when no bearer token is set.
	PersonID   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// MutationResult is the server's answer to a submitted mutation.
type MutationResult struct {
	Intent string        `json:"intent"`
	Key    string        `json:"key"`
	Action domain.Action `json:"action"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// ActionFilter narrows GET /actions. Zero values are not sent.
type ActionFilter struct {
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Responsible string `json:"responsible,omitempty"`
	Partner     string `json:"partner,omitempty"`
	Category    string `json:"category,omitempty"`
	State       string `json:"state,omitempty"`
}

// match applies the non-date fields locally; date bounds need the server's location.
func (f ActionFilter) match(a domain.Action) bool {
	return (f.Responsible == "" || slices.Contains(a.Responsibles, f.Responsible)) &&
		(f.Partner == "" || a.Partner == f.Partner) &&
		(f.Category == "" || a.Category == f.Category) &&
		(f.State == "" || a.State == f.State)
}

func (f ActionFilter) query() string {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("from", f.From)
	set("to", f.To)
	set("responsible", f.Responsible)
	set("partner", f.Partner)
	set("category", f.Category)
	set("state", f.State)
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ViewOptions is the body of POST /views/{view}.
type ViewOptions struct {
	Filter    *ActionFilter       `json:"filter,omitempty"`
	Pending   []map[string]string `json:"pending,omitempty"`
	Deletions []string            `json:"deletions,omitempty"`
	Now       *time.Time          `json:"now,omitempty"`
	Anchor    string              `json:"anchor,omitempty"`
	Sort      string              `json:"sort,omitempty"`
	Desc      bool                `json:"desc,omitempty"`
}

// View is the read model returned by POST /views/{view}.
type View struct {
	Kind    string          `json:"kind"`
	Now     time.Time       `json:"now"`
	Anchor  time.Time       `json:"anchor"`
	Actions []domain.Action `json:"actions"`
	Sets    struct {
		Overdue  []domain.Action `json:"overdue"`
		Today    []domain.Action `json:"today"`
		Tomorrow []domain.Action `json:"tomorrow"`
		ThisWeek []domain.Action `json:"this_week"`
		Upcoming []domain.Action `json:"upcoming"`
		Urgent   []domain.Action `json:"urgent"`
		Feed     []domain.Action `json:"feed"`
	} `json:"sets"`
	Days []struct {
		Date    time.Time       `json:"date"`
		InMonth bool            `json:"in_month"`
		Actions []domain.Action `json:"actions"`
	} `json:"days,omitempty"`
	Hours []struct {
		Hour    int             `json:"hour"`
		Actions []domain.Action `json:"actions"`
	} `json:"hours,omitempty"`
	Groups []struct {
		Key     string          `json:"key"`
		Actions []domain.Action `json:"actions"`
	} `json:"groups,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Reference fetches the lookup tables, partners and people.
func (c *Client) Reference(ctx context.Context) (domain.Reference, error) {
	var resp domain.Reference
	err := c.do(ctx, http.MethodGet, "v0/reference", nil, &resp)
	return resp, err
}

// Actions fetches the server snapshot.
func (c *Client) Actions(ctx context.Context, f ActionFilter) ([]domain.Action, error) {
	var resp struct {
		Items []domain.Action `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/actions"+f.query(), nil, &resp)
	return resp.Items, err
}

// Action fetches one action by id.
func (c *Client) Action(ctx context.Context, id string) (domain.Action, error) {
	var resp domain.Action
	err := c.do(ctx, http.MethodGet, "v0/actions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Mutate submits m and waits for the server to apply it.
func (c *Client) Mutate(ctx context.Context, m intent.Mutation) (MutationResult, error) {
	var resp MutationResult
	err := c.do(ctx, http.MethodPost, "v0/mutations", intent.Form(m), &resp)
	return resp, err
}

// View asks the server to reconcile and build a view.
func (c *Client) View(ctx context.Context, kind string, opts ViewOptions) (View, error) {
	var resp View
	err := c.do(ctx, http.MethodPost, "v0/views/"+url.PathEscape(kind), opts, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v0/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.PersonID != "":
		req.Header.Set("X-Person-Id", c.PersonID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
