package assets

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/praxis-erp/praxis-erp/internal/platform/httpx"
)

// Handler exposes read access to asset jobs and downloaded assets.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/jobs/{id}", h.handleGetJob)
	r.Get("/media/{id}", h.handleGetMedia)
	r.Get("/documents/{id}", h.handleGetDocument)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	job, err := h.repo.GetJob(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, jobResponse(job))
}

func (h *Handler) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	media, err := h.repo.GetMedia(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, media)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	doc, err := h.repo.GetDocument(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("asset request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

type jobView struct {
	ID        uuid.UUID `json:"id"`
	Type      JobType   `json:"type"`
	AssetID   uuid.UUID `json:"asset_id"`
	ProductID uuid.UUID `json:"product_id"`
	SourceURL string    `json:"source_url"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

func jobResponse(job AssetJob) jobView {
	return jobView{
		ID:        job.ID,
		Type:      job.Type,
		AssetID:   job.AssetID,
		ProductID: job.ProductID,
		SourceURL: job.SourceURL,
		Status:    job.Status,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}
}
