// internal/reservation/store.go
//
// Slug-reservation collaborator.
//
// Context
// -------
// Publishing a minisite requires its slug pair to be free: not owned by
// another site's head record, and not held by another site's live
// reservation.  The Store implements the single capability the versioning
// service consumes (ReserveOrConfirm) on top of the `minisite_reservation`
// table.  Reservations expire after a TTL; expired rows are swept before
// every check so an abandoned checkout never blocks a slug forever.
//
// The store runs on its own pool rather than joining the publish
// transaction: a rejected reservation aborts the caller's transaction, and
// a reservation row that outlives a failed publish simply expires.
package reservation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/minisite/internal/site"
)

// TTL is how long a reservation holds a slug pair without being confirmed
// by a publish.
const TTL = 15 * time.Minute

// Store checks and records slug reservations.  Safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

// NewStore returns a Store bound to the given pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// ReserveOrConfirm reports whether siteID may publish under slugs, taking or
// refreshing the reservation when it may.  The pair is free when its halves
// are well-formed, no other head row owns it, and no other site holds a live
// reservation on it.
func (s *Store) ReserveOrConfirm(ctx context.Context, siteID string, slugs site.SlugPair) (bool, error) {
	if !Valid(slugs.Business) || !Valid(slugs.Location) {
		return false, nil
	}

	if err := s.CleanupExpired(ctx); err != nil {
		return false, err
	}

	owner, err := site.BySlugs(ctx, s.db, slugs)
	if err != nil {
		return false, err
	}
	if owner != nil && owner.ID != siteID {
		return false, nil
	}

	const q = `
        SELECT minisite_id
        FROM   minisite_reservation
        WHERE  business_slug = ?
          AND  location_slug = ?
          AND  expires_at > ?
        LIMIT  1`
	var holder string
	err = sqlx.GetContext(ctx, s.db, &holder, q, slugs.Business, slugs.Location, time.Now().UTC())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// free to take
	case err != nil:
		return false, err
	case holder != siteID:
		return false, nil
	}

	const upsert = `
        INSERT INTO minisite_reservation
            (business_slug, location_slug, minisite_id, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE
            minisite_id = VALUES(minisite_id),
            expires_at  = VALUES(expires_at)`
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, upsert,
		slugs.Business, slugs.Location, siteID, now, now.Add(TTL)); err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpired deletes reservations whose TTL has lapsed.  Called before
// every availability check and by the periodic sweeper in main.
func (s *Store) CleanupExpired(ctx context.Context) error {
	const q = `DELETE FROM minisite_reservation WHERE expires_at <= ?`
	_, err := s.db.ExecContext(ctx, q, time.Now().UTC())
	return err
}
