package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/praxis-erp/praxis-erp/internal/observability"
	"github.com/praxis-erp/praxis-erp/internal/platform/httpx"
)

// ImportScheduler defers processing of a prepared upload to a background
// worker.
type ImportScheduler interface {
	ScheduleImport(ctx context.Context, uploadID uuid.UUID, opts ImportOptions) error
}

// Handler manages catalog import and review endpoints.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	scheduler      ImportScheduler
	metrics        *observability.Metrics
	validate       *validator.Validate
	maxUploadBytes int64
}

// NewHandler builds Handler instance. scheduler may be nil; async imports
// are then rejected.
func NewHandler(logger *slog.Logger, service *Service, scheduler ImportScheduler, metrics *observability.Metrics, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 16 << 20
	}
	return &Handler{
		logger:         logger,
		service:        service,
		scheduler:      scheduler,
		metrics:        metrics,
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/imports", h.handleImport)
	r.Get("/imports", h.handleListImports)
	r.Get("/imports/{id}", h.handleGetImport)
	r.Get("/review", h.handleReviewQueue)
	r.Post("/items/{id}/confirm", h.handleConfirm)
	r.Post("/items/{id}/product", h.handleChangeProduct)
	r.Post("/items/{id}/create-product", h.handleCreateProduct)
	r.Post("/items/{id}/ignore", h.handleIgnore)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "multipart form expected")
		return
	}
	supplierID, err := uuid.Parse(r.FormValue("supplier_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "supplier_id must be a UUID")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "file field required")
		return
	}
	defer file.Close()

	opts := ImportOptions{
		AutoEnrich:        formBool(r, "auto_enrich"),
		CreateNewProducts: formBool(r, "create_new_products"),
		SkipInvalidRows:   formBool(r, "skip_invalid_rows"),
		DefaultCurrency:   r.FormValue("default_currency"),
	}
	if raw := r.FormValue("min_confidence"); raw != "" {
		conf, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "min_confidence must be a number")
			return
		}
		opts.MinAutoMatchConfidence = conf
	}
	if err := h.validate.Struct(opts); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", err.Error())
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.logger.Error("read upload", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Upload Too Large", "")
		return
	}

	upload, err := h.service.PrepareUpload(r.Context(), supplierID, header.Filename, data)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if formBool(r, "async") {
		if h.scheduler == nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "async imports not available")
			return
		}
		if err := h.scheduler.ScheduleImport(r.Context(), upload.ID, opts); err != nil {
			h.logger.Error("schedule import", slog.String("upload_id", upload.ID.String()), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusAccepted, acceptedResponse{UploadID: upload.ID, Status: upload.Status})
		return
	}

	start := time.Now()
	result, err := h.service.ProcessUpload(r.Context(), upload.ID, opts)
	ObserveImport(h.metrics, result, time.Since(start))
	if err != nil {
		if result.Status == UploadStatusFailed {
			// A failed run still reports every row outcome, including
			// rows committed before the abort and rejected input rows.
			httpx.JSON(w, importErrorStatus(err), result)
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	supplierID, err := optionalUUID(r.URL.Query().Get("supplier_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "supplier_id must be a UUID")
		return
	}
	uploads, total, err := h.service.ListUploads(r.Context(), supplierID, limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]uploadResponse, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, newUploadResponse(u))
	}
	httpx.JSON(w, http.StatusOK, listResponse[uploadResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "upload id must be a UUID")
		return
	}
	upload, err := h.service.GetUpload(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newUploadResponse(upload))
}

func (h *Handler) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	supplierID, err := optionalUUID(r.URL.Query().Get("supplier_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "supplier_id must be a UUID")
		return
	}
	queue, total, err := h.service.ListReviewQueue(r.Context(), supplierID, limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]itemResponse, 0, len(queue))
	for _, it := range queue {
		items = append(items, newItemResponse(it))
	}
	httpx.JSON(w, http.StatusOK, listResponse[itemResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.ConfirmMatch(r.Context(), id, req.MatchedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newItemResponse(item))
}

func (h *Handler) handleChangeProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req changeProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.ChangeProduct(r.Context(), id, req.ProductID, req.MatchedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newItemResponse(item))
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.CreateProductAndLink(r.Context(), id, req.ProductInput, req.MatchedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newItemResponse(item))
}

func (h *Handler) handleIgnore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.MarkIgnored(r.Context(), id, req.MatchedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newItemResponse(item))
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateLink), errors.Is(err, ErrDuplicateGTIN):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrEmptyFile):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func importErrorStatus(err error) int {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrEmptyFile) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// ObserveImport feeds one finished import run into the pipeline metrics.
// Shared by the synchronous handler path and the background worker.
func ObserveImport(m *observability.Metrics, result ImportResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	for _, row := range result.Rows {
		switch {
		case row.Success && row.NeedsReview:
			m.ObserveImportRow("review")
		case row.Success:
			m.ObserveImportRow("success")
		default:
			m.ObserveImportRow("failed")
		}
		if row.MatchMethod != "" {
			m.ObserveMatch(string(row.MatchMethod))
		}
	}
	for range result.Rejected {
		m.ObserveImportRow("rejected")
	}
	m.ObserveImportDuration(elapsed)
}

func formBool(r *http.Request, field string) bool {
	v, _ := strconv.ParseBool(r.FormValue(field))
	return v
}

func optionalUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
