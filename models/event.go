// api/models/event.go
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Event types with dedicated handling in the tracking pipeline. Any other
// event_type value is accepted and stored as-is.
const (
	EventTypeSessionStart   = "session_start"
	EventTypeSessionEnd     = "session_end"
	EventTypeShortLinkClick = "short_link_click"
)

// Event represents a single tracked occurrence of user activity as submitted
// to POST /track. Timestamp is the client-supplied event time (ISO-8601), not
// the server receipt time. Raw holds the original JSON object exactly as
// submitted; it is persisted verbatim in the events.data column so future
// consumers can recover fields this service does not explicitly model.
type Event struct {
	EventType   string `json:"event_type"`
	PageURL     string `json:"page_url"`
	Referrer    string `json:"referrer,omitempty"`
	AnonymousID string `json:"anonymous_id"`
	SessionID   string `json:"session_id,omitempty"`
	Source      string `json:"source,omitempty"`
	CampaignID  string `json:"campaign_id,omitempty"`
	Timestamp   string `json:"timestamp"`

	Raw json.RawMessage `json:"-"`
}

// Session is one browsing session, derived from session_start/session_end
// events. SessionEnd stays NULL until (and unless) the session ends.
type Session struct {
	SessionID    string       `json:"session_id"`
	AnonymousID  string       `json:"anonymous_id"`
	SessionStart time.Time    `json:"session_start"`
	SessionEnd   sql.NullTime `json:"session_end"`
}

// ShortLink maps a slug to a destination URL. Rows are managed entirely
// outside this service; the tracking API only reads them by slug.
type ShortLink struct {
	Slug           string
	DestinationURL string
	Source         sql.NullString
	CampaignID     sql.NullString
}

// RejectedEvent reports one invalid element of a batch submission.
type RejectedEvent struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}
