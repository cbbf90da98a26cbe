// internal/site/store_test.go
//
// Unit-tests for head-record store helpers using sqlmock.
//
// Run: go test ./internal/site -v

package site

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

const testSiteID = "0123456789abcdef0123456789abcdef"

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func headRows(id string, lock int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "business_slug", "location_slug", "name", "title", "city",
		"region", "country_code", "postal_code", "site_template", "palette",
		"industry", "default_locale", "status", "publish_status",
		"current_version_id", "site_version", "created_by", "created_at",
		"updated_at", "published_at",
	}).AddRow(
		id, "acme-dental", "portland", "Acme Dental", "Acme Dental", "Portland",
		"Oregon", "US", "97201", "v2025", "blue",
		"dental", "en-US", "published", "published",
		int64(7), lock, int64(42), now,
		now, now,
	)
}

func TestByID(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM minisite WHERE id = ? LIMIT 1`)).
		WithArgs(testSiteID).
		WillReturnRows(headRows(testSiteID, 3))

	h, err := ByID(context.Background(), db, testSiteID)
	if err != nil {
		t.Fatalf("ByID error: %v", err)
	}
	if h == nil || h.ID != testSiteID || h.SiteVersion != 3 {
		t.Fatalf("unexpected head: %+v", h)
	}
	if h.CurrentVersionID == nil || *h.CurrentVersionID != 7 {
		t.Fatalf("current_version_id not scanned: %+v", h.CurrentVersionID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestByIDNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM minisite WHERE id = ? LIMIT 1`)).
		WithArgs("ffffffffffffffffffffffffffffffff").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	h, err := ByID(context.Background(), db, "ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("ByID error: %v", err)
	}
	if h != nil {
		t.Fatalf("expected nil head for missing site, got %+v", h)
	}
}

func TestLockForUpdate(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM minisite WHERE id = ? FOR UPDATE`)).
		WithArgs(testSiteID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testSiteID))

	found, err := LockForUpdate(context.Background(), db, testSiteID)
	if err != nil {
		t.Fatalf("LockForUpdate error: %v", err)
	}
	if !found {
		t.Fatalf("expected found = true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestLockForUpdateMissingSite(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM minisite WHERE id = ? FOR UPDATE`)).
		WithArgs(testSiteID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	found, err := LockForUpdate(context.Background(), db, testSiteID)
	if err != nil {
		t.Fatalf("LockForUpdate error: %v", err)
	}
	if found {
		t.Fatalf("expected found = false for missing site")
	}
}

func TestUpdateHeadBumpsCounter(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`site_version = site_version + 1 WHERE id = ? AND site_version = ?`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mut := Mutation{
		Slugs:            SlugPair{Business: "acme-dental", Location: "portland"},
		Status:           StatusPublished,
		PublishStatus:    PublishStatusPublished,
		CurrentVersionID: 7,
		PublishedAt:      time.Now().UTC(),
	}
	affected, err := UpdateHead(context.Background(), db, testSiteID, 3, mut)
	if err != nil {
		t.Fatalf("UpdateHead error: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestUpdateHeadStaleCounter(t *testing.T) {
	db, mock := newMock(t)

	// Another writer already bumped the counter: the guarded WHERE matches
	// nothing and zero rows are affected.
	mock.ExpectExec(regexp.QuoteMeta(`site_version = site_version + 1 WHERE id = ? AND site_version = ?`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := UpdateHead(context.Background(), db, testSiteID, 2, Mutation{})
	if err != nil {
		t.Fatalf("UpdateHead error: %v", err)
	}
	if affected != 0 {
		t.Fatalf("affected = %d, want 0 for stale counter", affected)
	}
}

func TestInsertStartsAtLockOne(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO minisite`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := &Head{ID: testSiteID, CreatedBy: 42}
	h.Business = "draft-0123456789ab"
	h.Location = "draft-0123456789ab"

	if err := Insert(context.Background(), db, h); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if h.SiteVersion != 1 {
		t.Fatalf("new head lock counter = %d, want 1", h.SiteVersion)
	}
	if h.Status != StatusDraft || h.PublishStatus != PublishStatusDraft {
		t.Fatalf("new head not in draft state: %+v", h)
	}
	if h.CurrentVersionID != nil {
		t.Fatalf("new head must not point at a version")
	}
}
