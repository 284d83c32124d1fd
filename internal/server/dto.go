package server

import (
	"encoding/json"
	"time"

	"actionboard/internal/domain"
)

// Request payloads

// ActionFilterRequest mirrors the snapshot filters of GET /actions.
type ActionFilterRequest struct {
	From        string `json:"from,omitempty" doc:"inclusive lower bound, RFC3339 or YYYY-MM-DD"`
	To          string `json:"to,omitempty" doc:"exclusive upper bound, RFC3339 or YYYY-MM-DD"`
	Responsible string `json:"responsible,omitempty"`
	Partner     string `json:"partner,omitempty"`
	Category    string `json:"category,omitempty"`
	State       string `json:"state,omitempty"`
	Archived    *bool  `json:"archived,omitempty"`
}

type ViewRequest struct {
	Filter    *ActionFilterRequest `json:"filter,omitempty"`
	Pending   []map[string]string  `json:"pending,omitempty" doc:"pending submissions in submission order, same shape as POST /mutations"`
	Deletions []string             `json:"deletions,omitempty"`
	Now       *time.Time           `json:"now,omitempty"`
	Anchor    string               `json:"anchor,omitempty" doc:"day inside the month, week or day to show"`
	Sort      string               `json:"sort,omitempty" enum:"state,priority,time"`
	Desc      bool                 `json:"desc,omitempty"`
}

type PartnerRequest struct {
	Title      string   `json:"title"`
	Short      string   `json:"short,omitempty"`
	Background string   `json:"background,omitempty"`
	Foreground string   `json:"foreground,omitempty"`
	Users      []string `json:"users,omitempty"`
	Archived   bool     `json:"archived,omitempty"`
	SortOrder  int      `json:"sort,omitempty"`
}

type PersonRequest struct {
	Name     string `json:"name"`
	Short    string `json:"short,omitempty"`
	Initials string `json:"initials,omitempty"`
	Image    string `json:"image,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
	Role     int    `json:"role,omitempty" minimum:"0"`
}

// Response payloads

type MutationResponse struct {
	Intent string        `json:"intent" enum:"create,update,delete,duplicate"`
	Key    string        `json:"key"`
	Action domain.Action `json:"action"`
}

type ActionList struct {
	Items []domain.Action `json:"items"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage(`{}`)
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}
