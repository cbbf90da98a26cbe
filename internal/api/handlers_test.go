// internal/api/handlers_test.go
//
// Handler tests over a stubbed service; no database involved.
//
// Run: go test ./internal/api -v

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/yanizio/minisite/internal/oplock"
	"github.com/yanizio/minisite/internal/site"
	"github.com/yanizio/minisite/internal/version"
	"github.com/yanizio/minisite/internal/versioning"
)

const testSiteID = "0123456789abcdef0123456789abcdef"

type stubOps struct {
	createSite   func(userID int64, in versioning.DraftInput) (*site.Head, *version.Version, error)
	createDraft  func(siteID string, userID int64, in versioning.DraftInput) (*version.Version, error)
	publish      func(siteID string, versionID, userID, expectedLock int64) (*site.Head, *version.Version, error)
	rollback     func(siteID string, sourceVersionID, userID int64) (*version.Version, error)
	listVersions func(siteID string, limit, offset int) ([]version.Version, error)
	count        func(siteID string) (int, error)
	latestDraft  func(siteID string, userID int64) (*version.Version, error)
}

func (s *stubOps) CreateSite(_ context.Context, userID int64, in versioning.DraftInput) (*site.Head, *version.Version, error) {
	return s.createSite(userID, in)
}

func (s *stubOps) CreateDraft(_ context.Context, siteID string, userID int64, in versioning.DraftInput) (*version.Version, error) {
	return s.createDraft(siteID, userID, in)
}

func (s *stubOps) PublishVersion(_ context.Context, siteID string, versionID, userID, expectedLock int64) (*site.Head, *version.Version, error) {
	return s.publish(siteID, versionID, userID, expectedLock)
}

func (s *stubOps) RollbackVersion(_ context.Context, siteID string, sourceVersionID, userID int64) (*version.Version, error) {
	return s.rollback(siteID, sourceVersionID, userID)
}

func (s *stubOps) ListVersions(_ context.Context, siteID string, limit, offset int) ([]version.Version, error) {
	return s.listVersions(siteID, limit, offset)
}

func (s *stubOps) CountVersions(_ context.Context, siteID string) (int, error) {
	return s.count(siteID)
}

func (s *stubOps) LatestDraftForEditing(_ context.Context, siteID string, userID int64) (*version.Version, error) {
	return s.latestDraft(siteID, userID)
}

func newHandler(ops VersionOps) http.Handler {
	h := &Handlers{Svc: ops, Log: zap.NewNop().Sugar()}
	return h.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, asUser string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if asUser != "" {
		req.Header.Set("X-User-ID", asUser)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const draftBody = `{
	"name": "Acme Dental", "title": "Acme Dental",
	"site_template": "v2025", "palette": "blue",
	"schema_version": 2, "site": {"hero": {}}
}`

func TestCreateSiteEndpoint(t *testing.T) {
	ops := &stubOps{
		createSite: func(userID int64, in versioning.DraftInput) (*site.Head, *version.Version, error) {
			head := &site.Head{ID: testSiteID, Status: site.StatusDraft, SiteVersion: 1, CreatedBy: userID}
			v := &version.Version{ID: 1, MinisiteID: testSiteID, VersionNumber: 1, Status: version.StatusDraft}
			return head, v, nil
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost, "/sites", draftBody, "42")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"site_version":1`) {
		t.Fatalf("new head missing from body: %s", rec.Body.String())
	}
}

func TestCreateDraftEndpoint(t *testing.T) {
	ops := &stubOps{
		createDraft: func(siteID string, userID int64, in versioning.DraftInput) (*version.Version, error) {
			if siteID != testSiteID || userID != 42 {
				t.Errorf("siteID/userID = %s/%d", siteID, userID)
			}
			if in.Display.Name != "Acme Dental" {
				t.Errorf("draft input not passed through: %+v", in.Display)
			}
			return &version.Version{ID: 99, MinisiteID: siteID, VersionNumber: 4, Status: version.StatusDraft}, nil
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost, "/sites/"+testSiteID+"/versions", draftBody, "42")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if got["version_number"] != float64(4) {
		t.Fatalf("version_number = %v", got["version_number"])
	}
}

func TestCreateDraftRequiresIdentity(t *testing.T) {
	ops := &stubOps{
		createDraft: func(string, int64, versioning.DraftInput) (*version.Version, error) {
			t.Fatalf("service must not be reached without identity")
			return nil, nil
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost, "/sites/"+testSiteID+"/versions", draftBody, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateDraftValidationFailure(t *testing.T) {
	ops := &stubOps{
		createDraft: func(string, int64, versioning.DraftInput) (*version.Version, error) {
			t.Fatalf("service must not be reached for an invalid submission")
			return nil, nil
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost, "/sites/"+testSiteID+"/versions",
		`{"schema_version": 2, "site": {}}`, "42")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"fields"`) {
		t.Fatalf("field errors missing from body: %s", rec.Body.String())
	}
}

func TestPublishConflict(t *testing.T) {
	ops := &stubOps{
		publish: func(siteID string, versionID, userID, expectedLock int64) (*site.Head, *version.Version, error) {
			return nil, nil, &oplock.Conflict{SiteID: siteID, Expected: expectedLock}
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost,
		"/sites/"+testSiteID+"/versions/9/publish", `{"expected_lock": 3}`, "42")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Reload and retry") {
		t.Fatalf("conflict message missing: %s", rec.Body.String())
	}
}

func TestPublishSlugUnavailable(t *testing.T) {
	ops := &stubOps{
		publish: func(string, int64, int64, int64) (*site.Head, *version.Version, error) {
			return nil, nil, versioning.ErrSlugUnavailable
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost,
		"/sites/"+testSiteID+"/versions/9/publish", `{"expected_lock": 3}`, "42")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "slug_unavailable") {
		t.Fatalf("error kind missing: %s", rec.Body.String())
	}
}

func TestPublishNonDraft(t *testing.T) {
	ops := &stubOps{
		publish: func(string, int64, int64, int64) (*site.Head, *version.Version, error) {
			return nil, nil, &versioning.StateError{Op: "publish", Reason: "only draft versions can be published"}
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost,
		"/sites/"+testSiteID+"/versions/9/publish", `{"expected_lock": 3}`, "42")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestPublishSuccess(t *testing.T) {
	ops := &stubOps{
		publish: func(siteID string, versionID, userID, expectedLock int64) (*site.Head, *version.Version, error) {
			if versionID != 9 || expectedLock != 3 {
				t.Errorf("versionID/expectedLock = %d/%d", versionID, expectedLock)
			}
			head := &site.Head{ID: siteID, Status: site.StatusPublished, SiteVersion: 4}
			v := &version.Version{ID: versionID, MinisiteID: siteID, VersionNumber: 3, Status: version.StatusPublished}
			return head, v, nil
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost,
		"/sites/"+testSiteID+"/versions/9/publish", `{"expected_lock": 3}`, "42")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Head struct {
			SiteVersion int64 `json:"site_version"`
		} `json:"head"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if got.Head.SiteVersion != 4 {
		t.Fatalf("returned lock counter = %d, want 4", got.Head.SiteVersion)
	}
}

func TestRollbackNotFound(t *testing.T) {
	ops := &stubOps{
		rollback: func(string, int64, int64) (*version.Version, error) {
			return nil, &versioning.NotFoundError{Kind: "version", ID: "404"}
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost,
		"/sites/"+testSiteID+"/versions/404/rollback", `{}`, "42")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListVersionsEndpoint(t *testing.T) {
	ops := &stubOps{
		listVersions: func(siteID string, limit, offset int) ([]version.Version, error) {
			if limit != 2 || offset != 1 {
				t.Errorf("limit/offset = %d/%d", limit, offset)
			}
			return []version.Version{
				{ID: 9, MinisiteID: siteID, VersionNumber: 3},
				{ID: 8, MinisiteID: siteID, VersionNumber: 2},
			}, nil
		},
		count: func(string) (int, error) { return 3, nil },
	}

	rec := doJSON(t, newHandler(ops), http.MethodGet,
		"/sites/"+testSiteID+"/versions?limit=2&offset=1", "", "42")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Versions []map[string]any `json:"versions"`
		Total    int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if len(got.Versions) != 2 || got.Total != 3 {
		t.Fatalf("versions/total = %d/%d", len(got.Versions), got.Total)
	}
}

func TestDraftForEditingEndpoint(t *testing.T) {
	ops := &stubOps{
		latestDraft: func(siteID string, userID int64) (*version.Version, error) {
			if userID != 42 {
				t.Errorf("userID = %d", userID)
			}
			return &version.Version{ID: 11, MinisiteID: siteID, VersionNumber: 3, Status: version.StatusDraft}, nil
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost, "/sites/"+testSiteID+"/draft", "", "42")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"version_number":3`) {
		t.Fatalf("draft missing from body: %s", rec.Body.String())
	}
}

func TestMalformedVersionID(t *testing.T) {
	ops := &stubOps{
		publish: func(string, int64, int64, int64) (*site.Head, *version.Version, error) {
			t.Fatalf("service must not be reached for a malformed id")
			return nil, nil, nil
		},
	}

	rec := doJSON(t, newHandler(ops), http.MethodPost,
		"/sites/"+testSiteID+"/versions/nine/publish", `{"expected_lock": 3}`, "42")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
