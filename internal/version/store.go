// internal/version/store.go
//
// Persistence helpers for immutable version rows.
//
// Context
// -------
// Insert is the only way a row comes into being, and MarkPublished /
// DemotePublished are the only mutations the table ever sees.  Everything
// else is reads: by id, by site (paginated, newest first), or the three
// "latest" lookups the service needs.
//
// NextNumber must run inside the same transaction as the Insert that
// consumes it, with the head row locked (site.LockForUpdate), so concurrent
// writers can never claim the same number.
//
// Notes
// -----
// • "Not found" is (nil, nil); infrastructure errors propagate unchanged.
// • Column list matches the fields in `Version`; update both together.
package version

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/minisite/internal/database"
)

const versionColumns = `
        id, minisite_id, version_number, status, label, comment,
        business_slug, location_slug, name, title, city, region,
        country_code, postal_code, site_template, palette, industry,
        default_locale, schema_version, site_json, created_by, created_at,
        published_at, source_version_id`

// Insert stores a new immutable row and fills in the assigned id and
// creation timestamp.  It never updates an existing row.
func Insert(ctx context.Context, q database.Querier, v *Version) error {
	const query = `
        INSERT INTO minisite_version (
            minisite_id, version_number, status, label, comment,
            business_slug, location_slug, name, title, city, region,
            country_code, postal_code, site_template, palette, industry,
            default_locale, schema_version, site_json, created_by,
            created_at, published_at, source_version_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	res, err := q.ExecContext(ctx, query,
		v.MinisiteID, v.VersionNumber, v.Status, v.Label, v.Comment,
		v.Business, v.Location,
		v.Name, v.Title, v.City, v.Region, v.CountryCode, v.PostalCode,
		v.SiteTemplate, v.Palette, v.Industry, v.DefaultLocale,
		v.SchemaVersion, []byte(v.Raw),
		v.CreatedBy, v.CreatedAt, v.PublishedAt, v.SourceVersionID,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

// ByID fetches one version row.  Returns (nil, nil) when absent.
func ByID(ctx context.Context, q database.Querier, id int64) (*Version, error) {
	const query = `
        SELECT ` + versionColumns + `
        FROM   minisite_version
        WHERE  id = ?
        LIMIT  1`
	var v Version
	if err := sqlx.GetContext(ctx, q, &v, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// ByMinisiteID returns one page of versions, newest first.
func ByMinisiteID(ctx context.Context, q database.Querier, minisiteID string, limit, offset int) ([]Version, error) {
	const query = `
        SELECT ` + versionColumns + `
        FROM   minisite_version
        WHERE  minisite_id = ?
        ORDER  BY version_number DESC
        LIMIT  ? OFFSET ?`
	var rows []Version
	if err := sqlx.SelectContext(ctx, q, &rows, query, minisiteID, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByMinisiteID reports the total number of versions, so callers can
// keep pagination consistent across pages.
func CountByMinisiteID(ctx context.Context, q database.Querier, minisiteID string) (int, error) {
	const query = `SELECT COUNT(*) FROM minisite_version WHERE minisite_id = ?`
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, minisiteID); err != nil {
		return 0, err
	}
	return n, nil
}

// Latest returns the highest-numbered version regardless of status, or
// (nil, nil) when the site has no versions yet.
func Latest(ctx context.Context, q database.Querier, minisiteID string) (*Version, error) {
	const query = `
        SELECT ` + versionColumns + `
        FROM   minisite_version
        WHERE  minisite_id = ?
        ORDER  BY version_number DESC
        LIMIT  1`
	return one(ctx, q, query, minisiteID)
}

// LatestDraft returns the newest draft, or (nil, nil) when none exists.
func LatestDraft(ctx context.Context, q database.Querier, minisiteID string) (*Version, error) {
	const query = `
        SELECT ` + versionColumns + `
        FROM   minisite_version
        WHERE  minisite_id = ? AND status = 'draft'
        ORDER  BY version_number DESC
        LIMIT  1`
	return one(ctx, q, query, minisiteID)
}

// Published returns the single live version, or (nil, nil) when the site
// has never been published or is currently between publishes.
func Published(ctx context.Context, q database.Querier, minisiteID string) (*Version, error) {
	const query = `
        SELECT ` + versionColumns + `
        FROM   minisite_version
        WHERE  minisite_id = ? AND status = 'published'
        LIMIT  1`
	return one(ctx, q, query, minisiteID)
}

// NextNumber computes max(version_number)+1 for the site, starting at 1.
// Callers must hold the head-row lock in the same transaction; the helper
// itself takes no lock.
func NextNumber(ctx context.Context, q database.Querier, minisiteID string) (int, error) {
	const query = `
        SELECT COALESCE(MAX(version_number), 0) + 1
        FROM   minisite_version
        WHERE  minisite_id = ?`
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, minisiteID); err != nil {
		return 0, err
	}
	return n, nil
}

// MarkPublished performs the one permitted post-insert mutation: the one-way
// draft→published flip plus the published_at stamp.  The status guard in the
// WHERE clause makes the flip idempotent-safe; zero affected rows means the
// row was not a draft anymore.
func MarkPublished(ctx context.Context, q database.Querier, id int64, at time.Time) (int64, error) {
	const query = `
        UPDATE minisite_version
        SET    status = 'published', published_at = ?
        WHERE  id = ? AND status = 'draft'`
	res, err := q.ExecContext(ctx, query, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DemotePublished flips the currently live row back to draft so the invariant
// "at most one published version per site" holds across a publish.  The row's
// published_at is deliberately left in place as the audit trail of when it
// was live.
func DemotePublished(ctx context.Context, q database.Querier, minisiteID string) error {
	const query = `
        UPDATE minisite_version
        SET    status = 'draft'
        WHERE  minisite_id = ? AND status = 'published'`
	_, err := q.ExecContext(ctx, query, minisiteID)
	return err
}

func one(ctx context.Context, q database.Querier, query string, args ...any) (*Version, error) {
	var v Version
	if err := sqlx.GetContext(ctx, q, &v, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}
