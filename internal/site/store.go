// internal/site/store.go
//
// Persistence helpers for the head record.
//
// Context
// -------
// All helpers accept a database.Querier so they run inside whatever
// transaction the versioning service opened.  "Not found" is a nil result,
// not an error; infrastructure failures propagate unchanged so the caller
// can wrap and log them.
//
// UpdateHead is the single write path for head mutations.  It compares the
// stored lock counter against the value the caller last read, and bumps the
// counter in the same statement.  Zero affected rows means another writer
// got there first; the oplock package turns that into a typed conflict.
//
// Notes
// -----
// • Column list matches the fields in `Head`; update both together.
// • Oxford commas, two spaces after periods.
package site

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/minisite/internal/database"
)

const headColumns = `
        id, business_slug, location_slug, name, title, city, region,
        country_code, postal_code, site_template, palette, industry,
        default_locale, status, publish_status, current_version_id,
        site_version, created_by, created_at, updated_at, published_at`

// ByID fetches a single head row.  Returns (nil, nil) when the site does
// not exist.
func ByID(ctx context.Context, q database.Querier, id string) (*Head, error) {
	const query = `
        SELECT ` + headColumns + `
        FROM   minisite
        WHERE  id = ?
        LIMIT  1`
	var h Head
	if err := sqlx.GetContext(ctx, q, &h, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// BySlugs fetches the head row owning a slug pair.  Used by the render path
// and by the reservation collaborator when checking availability.
func BySlugs(ctx context.Context, q database.Querier, slugs SlugPair) (*Head, error) {
	const query = `
        SELECT ` + headColumns + `
        FROM   minisite
        WHERE  business_slug = ?
          AND  location_slug = ?
        LIMIT  1`
	var h Head
	if err := sqlx.GetContext(ctx, q, &h, query, slugs.Business, slugs.Location); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// LockForUpdate takes a row lock on the head record for the duration of the
// enclosing transaction.  Version-number assignment is serialized through
// this lock, so two concurrent drafts can never claim the same number.
// Returns false when the site does not exist.
func LockForUpdate(ctx context.Context, q database.Querier, id string) (bool, error) {
	const query = `SELECT id FROM minisite WHERE id = ? FOR UPDATE`
	var got string
	if err := sqlx.GetContext(ctx, q, &got, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Insert creates a new head row with no versions: draft status, no live
// pointer, lock counter at 1.
func Insert(ctx context.Context, q database.Querier, h *Head) error {
	const query = `
        INSERT INTO minisite (
            id, business_slug, location_slug, name, title, city, region,
            country_code, postal_code, site_template, palette, industry,
            default_locale, status, publish_status, current_version_id,
            site_version, created_by, created_at, updated_at, published_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 1, ?, ?, ?, NULL)`

	now := time.Now().UTC()
	h.Status = StatusDraft
	h.PublishStatus = PublishStatusDraft
	h.CurrentVersionID = nil
	h.SiteVersion = 1
	h.CreatedAt = now
	h.UpdatedAt = now

	_, err := q.ExecContext(ctx, query,
		h.ID, h.Business, h.Location,
		h.Name, h.Title, h.City, h.Region, h.CountryCode, h.PostalCode,
		h.SiteTemplate, h.Palette, h.Industry, h.DefaultLocale,
		h.Status, h.PublishStatus,
		h.CreatedBy, h.CreatedAt, h.UpdatedAt,
	)
	return err
}

// Mutation is the set of head fields a publish may change.  PublishedAt is
// applied through COALESCE, so only the first publish ever sets it.
type Mutation struct {
	Display          DisplayFields
	Slugs            SlugPair
	Status           Status
	PublishStatus    PublishStatus
	CurrentVersionID int64
	PublishedAt      time.Time
}

// UpdateHead applies mut only when the stored lock counter equals
// expectedLock, incrementing the counter in the same statement.  The number
// of affected rows is returned; zero means the caller lost the race.
func UpdateHead(ctx context.Context, q database.Querier, id string, expectedLock int64, mut Mutation) (int64, error) {
	const query = `
        UPDATE minisite
        SET    business_slug = ?, location_slug = ?,
               name = ?, title = ?, city = ?, region = ?, country_code = ?,
               postal_code = ?, site_template = ?, palette = ?, industry = ?,
               default_locale = ?, status = ?, publish_status = ?,
               current_version_id = ?,
               published_at = COALESCE(published_at, ?),
               updated_at = ?,
               site_version = site_version + 1
        WHERE  id = ? AND site_version = ?`

	res, err := q.ExecContext(ctx, query,
		mut.Slugs.Business, mut.Slugs.Location,
		mut.Display.Name, mut.Display.Title, mut.Display.City,
		mut.Display.Region, mut.Display.CountryCode, mut.Display.PostalCode,
		mut.Display.SiteTemplate, mut.Display.Palette, mut.Display.Industry,
		mut.Display.DefaultLocale,
		mut.Status, mut.PublishStatus, mut.CurrentVersionID,
		mut.PublishedAt, time.Now().UTC(),
		id, expectedLock,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
