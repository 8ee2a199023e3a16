package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
)

func newEventStore(t *testing.T) (*EventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventStore(db), mock
}

func TestInsertEvent(t *testing.T) {
	s, mock := newEventStore(t)

	raw := json.RawMessage(`{"event_type":"pageview","page_url":"http://example.com","anonymous_id":"v1","timestamp":"2024-01-01T00:00:00Z"}`)
	event := models.Event{
		EventType:   "pageview",
		PageURL:     "http://example.com",
		AnonymousID: "v1",
		Timestamp:   "2024-01-01T00:00:00Z",
		Raw:         raw,
	}

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs("pageview", "http://example.com", nullable(""), "v1", nullable(""),
			"unknown", nullable(""), "2024-01-01T00:00:00Z", []byte(raw)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.InsertEvent(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventKeepsClientSource(t *testing.T) {
	s, mock := newEventStore(t)

	raw := json.RawMessage(`{"event_type":"pageview","source":"newsletter"}`)
	event := models.Event{
		EventType:   "pageview",
		PageURL:     "http://example.com",
		AnonymousID: "v1",
		Source:      "newsletter",
		CampaignID:  "c-9",
		Timestamp:   "2024-01-01T00:00:00Z",
		Raw:         raw,
	}

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs("pageview", "http://example.com", nullable(""), "v1", nullable(""),
			"newsletter", nullable("c-9"), "2024-01-01T00:00:00Z", []byte(raw)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.InsertEvent(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventDatabaseError(t *testing.T) {
	s, mock := newEventStore(t)

	mock.ExpectExec(`INSERT INTO events`).
		WillReturnError(errors.New("connection refused"))

	err := s.InsertEvent(context.Background(), models.Event{
		EventType:   "pageview",
		PageURL:     "http://example.com",
		AnonymousID: "v1",
		Timestamp:   "2024-01-01T00:00:00Z",
		Raw:         json.RawMessage(`{}`),
	})
	assert.ErrorContains(t, err, "failed to insert event")
}

func TestStartSession(t *testing.T) {
	s, mock := newEventStore(t)

	mock.ExpectExec(`INSERT INTO sessions .* ON CONFLICT \(session_id\) DO NOTHING`).
		WithArgs("s-1", "v1", "2024-01-01T00:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.StartSession(context.Background(), "s-1", "v1", "2024-01-01T00:00:00Z"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSessionIdempotent(t *testing.T) {
	s, mock := newEventStore(t)

	// Second start for the same session_id conflicts and affects zero rows.
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("s-1", "v2", "2024-01-02T00:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.StartSession(context.Background(), "s-1", "v2", "2024-01-02T00:00:00Z"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndSession(t *testing.T) {
	s, mock := newEventStore(t)

	mock.ExpectExec(`UPDATE sessions\s+SET session_end = \$2\s+WHERE session_id = \$1`).
		WithArgs("s-1", "2024-01-01T01:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := s.EndSession(context.Background(), "s-1", "2024-01-01T01:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestEndSessionUnknownSession(t *testing.T) {
	s, mock := newEventStore(t)

	mock.ExpectExec(`UPDATE sessions`).
		WithArgs("never-started", "2024-01-01T01:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := s.EndSession(context.Background(), "never-started", "2024-01-01T01:00:00Z")
	require.NoError(t, err)
	assert.Zero(t, affected)
}
