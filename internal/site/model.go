// internal/site/model.go
//
// Head-record model for one minisite.
//
// Context
// -------
// The head row is the only mutable record in the versioning engine.  It
// mirrors the display fields of the currently published version (or the
// original draft content if the site has never been published), points at
// the live version, and carries the optimistic-lock counter that every
// writer must present.
//
// Notes
// -----
// • Status and PublishStatus are closed enums; match them exhaustively.
// • SiteVersion is the lock counter.  It moves on, and only on, a
//   successful head write.
// • Oxford commas, two spaces after periods.
package site

import "time"

// Status is the lifecycle state of the head record itself.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is one of the closed set of head states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// PublishStatus tracks the slug-reservation state driven by the external
// reservation collaborator.
type PublishStatus string

const (
	PublishStatusDraft     PublishStatus = "draft"
	PublishStatusReserved  PublishStatus = "reserved"
	PublishStatusPublished PublishStatus = "published"
)

// Valid reports whether p is a known reservation state.
func (p PublishStatus) Valid() bool {
	switch p {
	case PublishStatusDraft, PublishStatusReserved, PublishStatusPublished:
		return true
	}
	return false
}

// SlugPair is the unique (business, location) address of a minisite.
type SlugPair struct {
	Business string `db:"business_slug" json:"business_slug"`
	Location string `db:"location_slug" json:"location_slug"`
}

// IsSet reports whether both halves of the pair are present.
func (s SlugPair) IsSet() bool { return s.Business != "" && s.Location != "" }

// String renders the canonical "business/location" form used in logs.
func (s SlugPair) String() string { return s.Business + "/" + s.Location }

// DisplayFields are the denormalized presentation columns shared by the head
// table and every version row.  On publish they are copied verbatim from the
// version onto the head.
type DisplayFields struct {
	Name          string `db:"name"           json:"name"`
	Title         string `db:"title"          json:"title"`
	City          string `db:"city"           json:"city"`
	Region        string `db:"region"         json:"region"`
	CountryCode   string `db:"country_code"   json:"country_code"`
	PostalCode    string `db:"postal_code"    json:"postal_code"`
	SiteTemplate  string `db:"site_template"  json:"site_template"`
	Palette       string `db:"palette"        json:"palette"`
	Industry      string `db:"industry"       json:"industry"`
	DefaultLocale string `db:"default_locale" json:"default_locale"`
}

// Head mirrors one row in the `minisite` table.
type Head struct {
	ID string `db:"id"`
	SlugPair
	DisplayFields

	Status           Status        `db:"status"`
	PublishStatus    PublishStatus `db:"publish_status"`
	CurrentVersionID *int64        `db:"current_version_id"`

	// SiteVersion is the optimistic-lock counter, not a content version.
	SiteVersion int64 `db:"site_version"`

	CreatedBy   int64      `db:"created_by"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	PublishedAt *time.Time `db:"published_at"`
}
