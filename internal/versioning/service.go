// internal/versioning/service.go
//
// Version state machine and orchestrator.
//
// Context
// -------
// The service owns the four public operations of the engine: CreateDraft,
// PublishVersion, RollbackVersion, and ListVersions.  Each one runs inside
// exactly one transaction; nothing suspends mid-transaction, and failure at
// any step rolls the whole unit back.  Stores are free functions over a
// database.Querier, so the same helpers serve both the transactional write
// path and plain reads.
//
// Per-site serialization works on two levels:
//
//   1. Write operations take a row lock on the head record for the duration
//      of their transaction, which serializes version-number assignment.
//   2. The head mutation itself goes through oplock.ApplyIfCurrent, so a
//      caller holding a stale lock counter is rejected even if it never
//      raced inside the database.
//
// Notes
// -----
// • Content validation happens upstream (internal/form); the service trusts
//   the Document it receives.
// • Oxford commas, two spaces after periods.
package versioning

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/minisite/internal/content"
	"github.com/yanizio/minisite/internal/metrics"
	"github.com/yanizio/minisite/internal/oplock"
	"github.com/yanizio/minisite/internal/site"
	"github.com/yanizio/minisite/internal/version"
)

// Default and maximum page sizes for ListVersions.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// SlugReserver is the external slug-reservation collaborator, consulted only
// during publish.  A false result means the pair is taken; the publish
// transaction is then aborted in full.
type SlugReserver interface {
	ReserveOrConfirm(ctx context.Context, siteID string, slugs site.SlugPair) (bool, error)
}

// Service orchestrates the version state machine.  Construct with New; the
// zero value is unusable.
type Service struct {
	db       *sqlx.DB
	reserver SlugReserver
	log      *zap.SugaredLogger
}

// New wires the service to its database pool and collaborators.
func New(db *sqlx.DB, reserver SlugReserver, log *zap.SugaredLogger) *Service {
	return &Service{db: db, reserver: reserver, log: log}
}

// DraftInput carries everything a new draft needs.  The form processor
// produces it; by the time it reaches the service the content is validated
// and the display fields are sanitized.
type DraftInput struct {
	Label   string
	Comment string
	Slugs   site.SlugPair
	Display site.DisplayFields
	Content content.Document
}

// CreateSite creates a new minisite: the head row under placeholder slugs
// and version 1 as a draft, in one transaction.  The real slug pair is
// reserved at first publish; until then the site is unreachable publicly.
func (s *Service) CreateSite(ctx context.Context, userID int64, in DraftInput) (*site.Head, *version.Version, error) {
	id := site.NewID()

	var (
		head *site.Head
		v    *version.Version
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		head = &site.Head{ID: id, DisplayFields: in.Display, CreatedBy: userID}
		head.Business = site.TempSlug(id)
		head.Location = site.TempSlug(id)
		if err := site.Insert(ctx, tx, head); err != nil {
			return fmt.Errorf("insert head %s: %w", id, err)
		}

		v = &version.Version{
			MinisiteID:    id,
			VersionNumber: 1,
			Status:        version.StatusDraft,
			Label:         in.Label,
			Comment:       in.Comment,
			SlugPair:      in.Slugs,
			DisplayFields: in.Display,
			Document:      in.Content,
			CreatedBy:     userID,
		}
		if err := version.Insert(ctx, tx, v); err != nil {
			return fmt.Errorf("insert first draft for %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.DraftCreatedTotal.Inc()
	s.log.Infow("site created", "site", id, "user", userID)
	return head, v, nil
}

// CreateDraft appends a new draft version.  The head record is not touched,
// so no conflict detection is needed; the head-row lock only serializes
// number assignment.
func (s *Service) CreateDraft(ctx context.Context, siteID string, userID int64, in DraftInput) (*version.Version, error) {
	var v *version.Version

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := site.LockForUpdate(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("lock head %s: %w", siteID, err)
		}
		if !found {
			return &NotFoundError{Kind: "site", ID: siteID}
		}

		next, err := version.NextNumber(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("next version number for %s: %w", siteID, err)
		}

		v = &version.Version{
			MinisiteID:    siteID,
			VersionNumber: next,
			Status:        version.StatusDraft,
			Label:         in.Label,
			Comment:       in.Comment,
			SlugPair:      in.Slugs,
			DisplayFields: in.Display,
			Document:      in.Content,
			CreatedBy:     userID,
		}
		if err := version.Insert(ctx, tx, v); err != nil {
			return fmt.Errorf("insert draft for %s: %w", siteID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DraftCreatedTotal.Inc()
	s.log.Infow("draft created",
		"site", siteID, "version", v.VersionNumber, "user", userID)
	return v, nil
}

// PublishVersion atomically promotes a draft to the live version: the
// previously live row is demoted, the draft flips to published, the slug
// reservation is confirmed, and the head is repointed under the lock
// counter.  Any failure leaves no partial state.
func (s *Service) PublishVersion(ctx context.Context, siteID string, versionID, userID, expectedLock int64) (*site.Head, *version.Version, error) {
	v, err := version.ByID(ctx, s.db, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load version %d: %w", versionID, err)
	}
	if v == nil || v.MinisiteID != siteID {
		return nil, nil, &NotFoundError{Kind: "version", ID: strconv.FormatInt(versionID, 10)}
	}
	if !v.IsDraft() {
		return nil, nil, &StateError{Op: "publish", Reason: "only draft versions can be published"}
	}

	now := time.Now().UTC()

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := site.LockForUpdate(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("lock head %s: %w", siteID, err)
		}
		if !found {
			return &NotFoundError{Kind: "site", ID: siteID}
		}

		// Keep invariant: at most one published row per site.  The demoted
		// row retains its published_at stamp for audit.
		if err := version.DemotePublished(ctx, tx, siteID); err != nil {
			return fmt.Errorf("demote published for %s: %w", siteID, err)
		}

		flipped, err := version.MarkPublished(ctx, tx, v.ID, now)
		if err != nil {
			return fmt.Errorf("mark version %d published: %w", v.ID, err)
		}
		if flipped == 0 {
			return &StateError{Op: "publish", Reason: "version is no longer a draft"}
		}

		ok, err := s.reserver.ReserveOrConfirm(ctx, siteID, v.SlugPair)
		if err != nil {
			return fmt.Errorf("slug reservation for %s: %w", siteID, err)
		}
		if !ok {
			return ErrSlugUnavailable
		}

		mut := site.Mutation{
			Display:          v.DisplayFields,
			Slugs:            v.SlugPair,
			Status:           site.StatusPublished,
			PublishStatus:    site.PublishStatusPublished,
			CurrentVersionID: v.ID,
			PublishedAt:      now,
		}
		return oplock.ApplyIfCurrent(ctx, tx, siteID, expectedLock, mut)
	})
	if err != nil {
		if oplock.IsConflict(err) {
			metrics.PublishConflictTotal.Inc()
			s.log.Warnw("publish conflict",
				"site", siteID, "version_id", versionID, "expected_lock", expectedLock)
		}
		return nil, nil, err
	}

	metrics.PublishTotal.Inc()
	s.log.Infow("version published",
		"site", siteID, "version_id", versionID, "user", userID)

	// Reload both records so callers see the committed state, including the
	// bumped lock counter.
	head, err := site.ByID(ctx, s.db, siteID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload head %s: %w", siteID, err)
	}
	fresh, err := version.ByID(ctx, s.db, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload version %d: %w", versionID, err)
	}
	return head, fresh, nil
}

// RollbackVersion appends a new draft whose content is a deep copy of the
// source version.  History is never rewritten, and the head record is not
// touched; the caller publishes the new draft separately to make it live.
func (s *Service) RollbackVersion(ctx context.Context, siteID string, sourceVersionID, userID int64) (*version.Version, error) {
	src, err := version.ByID(ctx, s.db, sourceVersionID)
	if err != nil {
		return nil, fmt.Errorf("load source version %d: %w", sourceVersionID, err)
	}
	if src == nil || src.MinisiteID != siteID {
		return nil, &NotFoundError{Kind: "version", ID: strconv.FormatInt(sourceVersionID, 10)}
	}

	var v *version.Version

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := site.LockForUpdate(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("lock head %s: %w", siteID, err)
		}
		if !found {
			return &NotFoundError{Kind: "site", ID: siteID}
		}

		next, err := version.NextNumber(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("next version number for %s: %w", siteID, err)
		}

		srcID := src.ID
		v = &version.Version{
			MinisiteID:      siteID,
			VersionNumber:   next,
			Status:          version.StatusDraft,
			Label:           fmt.Sprintf("Rollback to v%d", src.VersionNumber),
			Comment:         fmt.Sprintf("Rollback from version %d", src.VersionNumber),
			SlugPair:        src.SlugPair,
			DisplayFields:   src.DisplayFields,
			Document:        src.Document.Clone(),
			CreatedBy:       userID,
			SourceVersionID: &srcID,
		}
		if err := version.Insert(ctx, tx, v); err != nil {
			return fmt.Errorf("insert rollback draft for %s: %w", siteID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RollbackTotal.Inc()
	s.log.Infow("rollback draft created",
		"site", siteID, "source_version_id", sourceVersionID,
		"version", v.VersionNumber, "user", userID)
	return v, nil
}

// ListVersions returns one page of version history, newest first.  Pure
// read; no state changes.
func (s *Service) ListVersions(ctx context.Context, siteID string, limit, offset int) ([]version.Version, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := version.ByMinisiteID(ctx, s.db, siteID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", siteID, err)
	}
	return rows, nil
}

// CountVersions reports the total history length, so pagination stays
// consistent across pages.
func (s *Service) CountVersions(ctx context.Context, siteID string) (int, error) {
	n, err := version.CountByMinisiteID(ctx, s.db, siteID)
	if err != nil {
		return 0, fmt.Errorf("count versions for %s: %w", siteID, err)
	}
	return n, nil
}

// LatestDraftForEditing returns the newest draft, cloning one from the
// latest version when everything is already published.  Editors therefore
// always have a draft to work on without publishing anything by accident.
func (s *Service) LatestDraftForEditing(ctx context.Context, siteID string, userID int64) (*version.Version, error) {
	var v *version.Version

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := site.LockForUpdate(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("lock head %s: %w", siteID, err)
		}
		if !found {
			return &NotFoundError{Kind: "site", ID: siteID}
		}

		draft, err := version.LatestDraft(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("latest draft for %s: %w", siteID, err)
		}
		if draft != nil {
			v = draft
			return nil
		}

		latest, err := version.Latest(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("latest version for %s: %w", siteID, err)
		}
		if latest == nil {
			return &StateError{Op: "edit", Reason: "site has no versions yet"}
		}

		next, err := version.NextNumber(ctx, tx, siteID)
		if err != nil {
			return fmt.Errorf("next version number for %s: %w", siteID, err)
		}

		latestID := latest.ID
		v = &version.Version{
			MinisiteID:      siteID,
			VersionNumber:   next,
			Status:          version.StatusDraft,
			Label:           fmt.Sprintf("Draft from v%d", latest.VersionNumber),
			Comment:         fmt.Sprintf("Created from version %d for editing", latest.VersionNumber),
			SlugPair:        latest.SlugPair,
			DisplayFields:   latest.DisplayFields,
			Document:        latest.Document.Clone(),
			CreatedBy:       userID,
			SourceVersionID: &latestID,
		}
		return version.Insert(ctx, tx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// withTx runs fn inside one transaction: commit on nil, full rollback on
// error or panic.
func (s *Service) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Errorw("tx rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
