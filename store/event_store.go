// api/store/event_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"pulsetrack/api/models"
)

type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore instance.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// nullable maps an empty string to SQL NULL. Optional event fields arrive as
// empty strings after JSON decoding.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertEvent writes one row into the events table. The data column receives
// the original JSON object (event.Raw) untouched, not a re-serialization of
// the typed fields. Source defaults to "unknown" when absent.
func (s *EventStore) InsertEvent(ctx context.Context, event models.Event) error {
	source := event.Source
	if source == "" {
		source = "unknown"
	}

	query := `
		INSERT INTO events (
			event_type,
			page_url,
			referrer,
			anonymous_id,
			session_id,
			source,
			campaign_id,
			timestamp,
			data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := s.db.ExecContext(ctx, query,
		event.EventType,
		event.PageURL,
		nullable(event.Referrer),
		event.AnonymousID,
		nullable(event.SessionID),
		source,
		nullable(event.CampaignID),
		event.Timestamp,
		[]byte(event.Raw),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// StartSession records the beginning of a session. First write wins: if a row
// with this session_id already exists it is left unmodified.
func (s *EventStore) StartSession(ctx context.Context, sessionID, anonymousID, startedAt string) error {
	query := `
		INSERT INTO sessions (session_id, anonymous_id, session_start)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING;
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, anonymousID, startedAt); err != nil {
		return fmt.Errorf("failed to start session %s: %w", sessionID, err)
	}
	return nil
}

// EndSession closes a session by key. Returns the number of rows updated;
// zero means the session never started, which callers treat as success.
func (s *EventStore) EndSession(ctx context.Context, sessionID, endedAt string) (int64, error) {
	query := `
		UPDATE sessions
		SET session_end = $2
		WHERE session_id = $1;
	`
	res, err := s.db.ExecContext(ctx, query, sessionID, endedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected for session %s: %w", sessionID, err)
	}
	return affected, nil
}

// Ping reports whether the underlying database is reachable.
func (s *EventStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
