// Package handlers holds the REST endpoint handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"schemacanvas-backend/application/services"
	"schemacanvas-backend/pkg/auth"
	apperrors "schemacanvas-backend/pkg/errors"
)

// ProjectHandler serves the project and version endpoints.
type ProjectHandler struct {
	service  *services.DiagramService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProjectHandler creates the project handler.
func NewProjectHandler(service *services.DiagramService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type saveDiagramRequest struct {
	Content         json.RawMessage `json:"content" validate:"required"`
	ExpectedVersion *int            `json:"expectedVersion" validate:"omitempty,gte=0"`
}

type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"ownerId"`
	Version     int       `json:"version"`
	ContentHash string    `json:"contentHash"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy"`
}

type projectDetailResponse struct {
	projectResponse
	Content json.RawMessage `json:"content"`
	Role    string          `json:"role"`
}

type versionResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy"`
}

type versionListResponse struct {
	Versions []versionResponse `json:"versions"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// List is GET /projects: the caller's own projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorizedError(""))
		return
	}

	records, err := h.service.ListProjects(r.Context(), user.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]projectResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, projectResponse{
			ID:          rec.ID,
			Name:        rec.Name,
			OwnerID:     rec.OwnerID,
			Version:     rec.Version,
			ContentHash: rec.ContentHash,
			UpdatedAt:   rec.UpdatedAt,
			UpdatedBy:   rec.UpdatedBy,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"projects": out})
}

// Get is GET /projects/{projectID}: the full record including content.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorizedError(""))
		return
	}
	projectID := chi.URLParam(r, "projectID")

	rec, role, err := h.service.GetProject(r.Context(), projectID, user.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, projectDetailResponse{
		projectResponse: projectResponse{
			ID:          rec.ID,
			Name:        rec.Name,
			OwnerID:     rec.OwnerID,
			Version:     rec.Version,
			ContentHash: rec.ContentHash,
			UpdatedAt:   rec.UpdatedAt,
			UpdatedBy:   rec.UpdatedBy,
		},
		Content: json.RawMessage(rec.Content),
		Role:    string(role),
	})
}

// Save is PUT /projects/{projectID}/diagram: the authoritative save.
// Optimistic concurrency rides on expectedVersion; retried requests may carry
// an Idempotency-Key header.
func (h *ProjectHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorizedError(""))
		return
	}
	projectID := chi.URLParam(r, "projectID")

	var req saveDiagramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidationError("invalid request body").WithCause(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, apperrors.NewValidationError("content is required").WithCause(err))
		return
	}

	rec, err := h.service.SaveDiagram(r.Context(), projectID, req.Content, user.UserID, services.SaveOptions{
		ExpectedVersion: req.ExpectedVersion,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, projectResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		OwnerID:     rec.OwnerID,
		Version:     rec.Version,
		ContentHash: rec.ContentHash,
		UpdatedAt:   rec.UpdatedAt,
		UpdatedBy:   rec.UpdatedBy,
	})
}

// ListVersions is GET /projects/{projectID}/versions with page/limit query
// parameters, newest first.
func (h *ProjectHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorizedError(""))
		return
	}
	projectID := chi.URLParam(r, "projectID")

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	snaps, total, err := h.service.ListVersions(r.Context(), projectID, user.UserID, page, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]versionResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, versionResponse{
			ID:          snap.ID,
			Description: snap.Description,
			CreatedAt:   snap.CreatedAt,
			CreatedBy:   snap.CreatedBy,
		})
	}
	respondJSON(w, http.StatusOK, versionListResponse{
		Versions: out,
		Total:    total,
		Page:     page,
		Limit:    limit,
	})
}

// Restore is POST /projects/{projectID}/versions/{versionID}/restore.
func (h *ProjectHandler) Restore(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorizedError(""))
		return
	}
	projectID := chi.URLParam(r, "projectID")
	versionID := chi.URLParam(r, "versionID")

	rec, err := h.service.RestoreVersion(r.Context(), projectID, versionID, user.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, projectResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		OwnerID:     rec.OwnerID,
		Version:     rec.Version,
		ContentHash: rec.ContentHash,
		UpdatedAt:   rec.UpdatedAt,
		UpdatedBy:   rec.UpdatedBy,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
