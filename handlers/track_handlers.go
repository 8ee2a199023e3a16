// api/handlers/track_handlers.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/models"
	"pulsetrack/api/store"
	"pulsetrack/api/utils"
)

const dbTimeout = 15 * time.Second

// EventRecorder persists events and maintains the derived sessions table.
type EventRecorder interface {
	InsertEvent(ctx context.Context, event models.Event) error
	StartSession(ctx context.Context, sessionID, anonymousID, startedAt string) error
	EndSession(ctx context.Context, sessionID, endedAt string) (int64, error)
	Ping(ctx context.Context) error
}

// ShortLinkResolver resolves slugs to short links.
type ShortLinkResolver interface {
	GetBySlug(ctx context.Context, slug string) (*models.ShortLink, error)
}

type TrackHandlers struct {
	Events EventRecorder
	Links  ShortLinkResolver
}

func NewTrackHandlers(events EventRecorder, links ShortLinkResolver) *TrackHandlers {
	return &TrackHandlers{
		Events: events,
		Links:  links,
	}
}

// decodeEvents accepts either a single JSON object or an array of objects and
// returns the raw elements in submission order.
func decodeEvents(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}

	var raw json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	return []json.RawMessage{raw}, nil
}

// TrackEvent handles POST /track. Each valid element becomes one events row
// with the submitted object stored verbatim in the data column; session_start
// and session_end events additionally touch the sessions table. Invalid
// elements of a batch are skipped and reported; a request with no valid
// element at all is rejected. There is no transaction around the batch, so a
// database failure mid-batch leaves earlier inserts in place.
func (h *TrackHandlers) TrackEvent(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	raws, err := decodeEvents(body)
	if err != nil {
		log.Debug().Err(err).Msg("Malformed tracking payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(raws) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	var accepted []models.Event
	var rejected []models.RejectedEvent

	for i, raw := range raws {
		var event models.Event
		if err := json.Unmarshal(raw, &event); err != nil || !utils.IsValidEvent(event) {
			rejected = append(rejected, models.RejectedEvent{Index: i, Error: "Invalid event data"})
			continue
		}
		event.Raw = raw
		accepted = append(accepted, event)
	}

	if len(accepted) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event data"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	for _, event := range accepted {
		if err := h.persistEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("event_type", event.EventType).Msg("Database error while recording event")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	}

	if len(rejected) > 0 {
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"accepted": len(accepted),
			"rejected": rejected,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// persistEvent inserts the events row, then applies the session transition
// for lifecycle events that carry a session_id.
func (h *TrackHandlers) persistEvent(ctx context.Context, event models.Event) error {
	if err := h.Events.InsertEvent(ctx, event); err != nil {
		return err
	}

	if event.SessionID == "" {
		return nil
	}

	switch event.EventType {
	case models.EventTypeSessionStart:
		return h.Events.StartSession(ctx, event.SessionID, event.AnonymousID, event.Timestamp)
	case models.EventTypeSessionEnd:
		// Zero rows updated means the session never started; not an error.
		_, err := h.Events.EndSession(ctx, event.SessionID, event.Timestamp)
		return err
	}
	return nil
}

// Redirect handles GET /r/:slug. The click is logged as a short_link_click
// event under a fresh anonymous id before the 302 is issued; a logging
// failure blocks the redirect.
func (h *TrackHandlers) Redirect(c *gin.Context) {
	slug := c.Param("slug")

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	link, err := h.Links.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			c.String(http.StatusNotFound, "Link not found")
			return
		}
		log.Error().Err(err).Str("slug", slug).Msg("Database error while resolving short link")
		c.String(http.StatusInternalServerError, "Server error")
		return
	}

	data, err := json.Marshal(gin.H{"slug": link.Slug, "destination": link.DestinationURL})
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to encode click payload")
		c.String(http.StatusInternalServerError, "Server error")
		return
	}

	click := models.Event{
		EventType:   models.EventTypeShortLinkClick,
		PageURL:     link.DestinationURL,
		AnonymousID: uuid.New().String(), // temporary anonymous id, no cookie
		Source:      link.Source.String,
		CampaignID:  link.CampaignID.String,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Raw:         data,
	}

	if err := h.Events.InsertEvent(ctx, click); err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Database error while logging short link click")
		c.String(http.StatusInternalServerError, "Server error")
		return
	}

	c.Redirect(http.StatusFound, link.DestinationURL)
}

// HealthCheck reports whether the database is reachable.
func (h *TrackHandlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Events.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Health check database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
