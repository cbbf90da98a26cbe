// internal/version/model.go
//
// Immutable version snapshot for one minisite.
//
// Context
// -------
// A Version is append-only: its content is fixed at insert time, and the
// only post-insert mutation the store permits is the one-way publish flip
// (status + published_at).  Rollback never rewrites a row; it inserts a new
// draft whose SourceVersionID records where the content came from.
package version

import (
	"time"

	"github.com/yanizio/minisite/internal/content"
	"github.com/yanizio/minisite/internal/site"
)

// Status is the two-state version lifecycle.  A row flips draft→published
// once; it is demoted only when a later version takes its place as the
// single live row.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known version status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Version mirrors one row in the `minisite_version` table.  Display fields
// and slugs are denormalized per version so a publish can repoint the head
// without re-reading older rows.
type Version struct {
	ID            int64  `db:"id"`
	MinisiteID    string `db:"minisite_id"`
	VersionNumber int    `db:"version_number"`
	Status        Status `db:"status"`
	Label         string `db:"label"`
	Comment       string `db:"comment"`

	site.SlugPair
	site.DisplayFields
	content.Document

	CreatedBy   int64      `db:"created_by"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"`

	// SourceVersionID is set only on drafts created by a rollback.
	SourceVersionID *int64 `db:"source_version_id"`
}

// IsDraft reports whether the version can still be published.
func (v *Version) IsDraft() bool { return v.Status == StatusDraft }
