// internal/api/handlers.go
//
// HTTP boundary for the versioning engine.
//
// Context
// -------
// Authentication and rendering live outside this repository; the handlers
// here are a thin orchestration boundary: decode the request, invoke the
// service, and translate typed failures into user-facing JSON.  The upstream
// auth wrapper identifies the editor via the X-User-ID header.
//
// Error translation
// -----------------
//   - field errors     → 400, per-field list for inline display
//   - NotFoundError    → 404
//   - ConflictError    → 409, "reload and retry"
//   - slug unavailable → 409, address-taken message
//   - StateError       → 422, "no longer valid, refresh"
//   - anything else    → 500, generic text; full context goes to the log
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/minisite/internal/form"
	"github.com/yanizio/minisite/internal/headcache"
	"github.com/yanizio/minisite/internal/oplock"
	"github.com/yanizio/minisite/internal/site"
	"github.com/yanizio/minisite/internal/version"
	"github.com/yanizio/minisite/internal/versioning"
)

// maxBodyBytes caps editor payloads; full site content stays well under it.
const maxBodyBytes = 1 << 20

// VersionOps is the slice of the versioning service the handlers consume.
// Declared here so tests can stub it.
type VersionOps interface {
	CreateSite(ctx context.Context, userID int64, in versioning.DraftInput) (*site.Head, *version.Version, error)
	CreateDraft(ctx context.Context, siteID string, userID int64, in versioning.DraftInput) (*version.Version, error)
	PublishVersion(ctx context.Context, siteID string, versionID, userID, expectedLock int64) (*site.Head, *version.Version, error)
	RollbackVersion(ctx context.Context, siteID string, sourceVersionID, userID int64) (*version.Version, error)
	ListVersions(ctx context.Context, siteID string, limit, offset int) ([]version.Version, error)
	CountVersions(ctx context.Context, siteID string) (int, error)
	LatestDraftForEditing(ctx context.Context, siteID string, userID int64) (*version.Version, error)
}

// Handlers bundles the collaborators each endpoint needs.
type Handlers struct {
	Svc   VersionOps
	Cache *headcache.Cache
	Log   *zap.SugaredLogger
}

// Router mounts the versioning endpoints.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/sites", h.createSite)
	r.Route("/sites/{siteID}", func(r chi.Router) {
		r.Get("/", h.getPublished)
		r.Get("/versions", h.listVersions)
		r.Post("/versions", h.createDraft)
		r.Post("/draft", h.draftForEditing)
		r.Post("/versions/{versionID}/publish", h.publishVersion)
		r.Post("/versions/{versionID}/rollback", h.rollbackVersion)
	})
	return r
}

//
// Endpoints
//

func (h *Handlers) createSite(w http.ResponseWriter, r *http.Request) {
	userID, ok := editorID(w, r)
	if !ok {
		return
	}

	res, fieldErrs := h.readSubmission(w, r)
	if res == nil {
		if fieldErrs != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation_failed",
				"fields": fieldErrs,
			})
		}
		return
	}

	head, v, err := h.Svc.CreateSite(r.Context(), userID, versioning.DraftInput{
		Label:   res.Label,
		Comment: res.Comment,
		Slugs:   res.Slugs,
		Display: res.Display,
		Content: res.Content,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"head":    headDTO(head),
		"version": versionDTO(v),
	})
}

func (h *Handlers) createDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := editorID(w, r)
	if !ok {
		return
	}
	siteID := chi.URLParam(r, "siteID")

	res, fieldErrs := h.readSubmission(w, r)
	if res == nil {
		if fieldErrs != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation_failed",
				"fields": fieldErrs,
			})
		}
		return
	}

	v, err := h.Svc.CreateDraft(r.Context(), siteID, userID, versioning.DraftInput{
		Label:   res.Label,
		Comment: res.Comment,
		Slugs:   res.Slugs,
		Display: res.Display,
		Content: res.Content,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, versionDTO(v))
}

func (h *Handlers) publishVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := editorID(w, r)
	if !ok {
		return
	}
	siteID := chi.URLParam(r, "siteID")
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}

	var req struct {
		ExpectedLock int64 `json:"expected_lock"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad_request", "Request body is not valid JSON.")
		return
	}

	head, v, err := h.Svc.PublishVersion(r.Context(), siteID, versionID, userID, req.ExpectedLock)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// The next public read must see the new live version.
	if h.Cache != nil {
		h.Cache.Invalidate(siteID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"head":    headDTO(head),
		"version": versionDTO(v),
	})
}

func (h *Handlers) rollbackVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := editorID(w, r)
	if !ok {
		return
	}
	siteID := chi.URLParam(r, "siteID")
	sourceID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}

	v, err := h.Svc.RollbackVersion(r.Context(), siteID, sourceID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, versionDTO(v))
}

// draftForEditing returns the newest draft, creating one from the latest
// version when everything is already published.  POST because a call may
// insert a row.
func (h *Handlers) draftForEditing(w http.ResponseWriter, r *http.Request) {
	userID, ok := editorID(w, r)
	if !ok {
		return
	}
	siteID := chi.URLParam(r, "siteID")

	v, err := h.Svc.LatestDraftForEditing(r.Context(), siteID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versionDTO(v))
}

func (h *Handlers) listVersions(w http.ResponseWriter, r *http.Request) {
	if _, ok := editorID(w, r); !ok {
		return
	}
	siteID := chi.URLParam(r, "siteID")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rows, err := h.Svc.ListVersions(r.Context(), siteID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.Svc.CountVersions(r.Context(), siteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for i := range rows {
		out = append(out, versionDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"versions": out,
		"total":    total,
	})
}

// getPublished serves the render path from the head cache.  No editor
// identity is required; published content is public.
func (h *Handlers) getPublished(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	head, err := h.Cache.Get(r.Context(), siteID)
	if err != nil {
		if errors.Is(err, headcache.ErrNotPublished) {
			writeMessage(w, http.StatusNotFound, "not_found", "This site is not available.")
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, headDTO(head))
}

//
// Request helpers
//

// readSubmission decodes and validates an editor payload.  A nil Result with
// nil errors means the body could not be read and a response was already
// written; a nil Result with errors means validation failed.
func (h *Handlers) readSubmission(w http.ResponseWriter, r *http.Request) (*form.Result, []form.FieldError) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "bad_request", "Request body could not be read.")
		return nil, nil
	}
	return form.Process(body)
}

func editorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusUnauthorized, "unauthorized", "Sign in to manage this site.")
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "bad_request", "Malformed version id.")
		return 0, false
	}
	return id, true
}

//
// Response helpers
//

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case versioning.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, "not_found", "Site or version not found.")
	case oplock.IsConflict(err):
		writeMessage(w, http.StatusConflict, "conflict",
			"Someone else edited this site.  Reload and retry.")
	case errors.Is(err, versioning.ErrSlugUnavailable):
		writeMessage(w, http.StatusConflict, "slug_unavailable",
			"That web address is already taken.")
	case versioning.IsState(err):
		writeMessage(w, http.StatusUnprocessableEntity, "invalid_state",
			"This action is no longer valid.  Refresh and try again.")
	default:
		h.Log.Errorw("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal",
			"Something went wrong.  Please try again later.")
	}
}

func writeMessage(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, map[string]any{"error": kind, "message": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

//
// DTOs
//

func versionDTO(v *version.Version) map[string]any {
	dto := map[string]any{
		"id":             v.ID,
		"minisite_id":    v.MinisiteID,
		"version_number": v.VersionNumber,
		"status":         v.Status,
		"label":          v.Label,
		"comment":        v.Comment,
		"slugs":          v.SlugPair,
		"display":        v.DisplayFields,
		"schema_version": v.SchemaVersion,
		"site":           v.Raw,
		"created_by":     v.CreatedBy,
		"created_at":     v.CreatedAt,
	}
	if v.PublishedAt != nil {
		dto["published_at"] = v.PublishedAt
	}
	if v.SourceVersionID != nil {
		dto["source_version_id"] = *v.SourceVersionID
	}
	return dto
}

func headDTO(h *site.Head) map[string]any {
	dto := map[string]any{
		"id":             h.ID,
		"slugs":          h.SlugPair,
		"display":        h.DisplayFields,
		"status":         h.Status,
		"publish_status": h.PublishStatus,
		"site_version":   h.SiteVersion,
		"created_at":     h.CreatedAt,
		"updated_at":     h.UpdatedAt,
	}
	if h.CurrentVersionID != nil {
		dto["current_version_id"] = *h.CurrentVersionID
	}
	if h.PublishedAt != nil {
		dto["published_at"] = h.PublishedAt
	}
	return dto
}
