// api/store/shortlink_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pulsetrack/api/models"
)

// ErrLinkNotFound is returned when no short link exists for a slug.
var ErrLinkNotFound = errors.New("short link not found")

// ShortLinkStore reads the short_links table. Link management lives in
// another system; this service never writes to it.
type ShortLinkStore struct {
	db *sql.DB
}

func NewShortLinkStore(db *sql.DB) *ShortLinkStore {
	return &ShortLinkStore{db: db}
}

// GetBySlug looks up exactly one short link by exact slug match.
func (s *ShortLinkStore) GetBySlug(ctx context.Context, slug string) (*models.ShortLink, error) {
	link := &models.ShortLink{}
	query := `
		SELECT slug, destination_url, source, campaign_id
		FROM short_links
		WHERE slug = $1;
	`
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&link.Slug,
		&link.DestinationURL,
		&link.Source,
		&link.CampaignID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get short link by slug: %w", err)
	}

	return link, nil
}
