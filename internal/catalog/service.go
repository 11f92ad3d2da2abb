package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/praxis-erp/praxis-erp/internal/shared"
	"github.com/praxis-erp/praxis-erp/internal/storage"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	CatalogIndex
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetSupplierItem(ctx context.Context, id uuid.UUID) (SupplierItem, error)
	ListReviewQueue(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]SupplierItem, int, error)
	CreateUpload(ctx context.Context, upload CatalogUpload) error
	SetUploadStatus(ctx context.Context, id uuid.UUID, status UploadStatus) error
	FinishUpload(ctx context.Context, upload CatalogUpload) error
	GetUpload(ctx context.Context, id uuid.UUID) (CatalogUpload, error)
	ListUploads(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]CatalogUpload, int, error)
}

// EnrichmentOutcome summarises one best-effort enrichment call.
type EnrichmentOutcome struct {
	EnrichedFields  []string
	MediaQueued     int
	DocumentsQueued int
	Warnings        []string
}

// Enriched reports whether the call produced anything.
func (o EnrichmentOutcome) Enriched() bool {
	return len(o.EnrichedFields) > 0 || o.MediaQueued > 0 || o.DocumentsQueued > 0
}

// EnrichmentPort invokes the external product-data lookup. Implementations
// must bound their own timeouts; failures become row warnings.
type EnrichmentPort interface {
	EnrichProduct(ctx context.Context, productID uuid.UUID, gtin string) (EnrichmentOutcome, error)
}

// AuditPort records audit log entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives rows through matcher, decision policy and catalog writer,
// and applies manual review mutations.
type Service struct {
	repo     RepositoryPort
	matcher  *Matcher
	enricher EnrichmentPort
	store    storage.Provider
	audit    AuditPort
	logger   *slog.Logger
	parser   Parser
}

// NewService constructs the catalog service. enricher and audit may be nil.
func NewService(repo RepositoryPort, matcher *Matcher, enricher EnrichmentPort, store storage.Provider, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		matcher:  matcher,
		enricher: enricher,
		store:    store,
		audit:    audit,
		logger:   logger,
		parser:   Parser{},
	}
}

// ImportCatalog stores the raw input, creates the audit record and
// processes all rows synchronously.
func (s *Service) ImportCatalog(ctx context.Context, supplierID uuid.UUID, filename string, r io.Reader, opts ImportOptions) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("catalog: read input: %w", err)
	}
	upload, err := s.PrepareUpload(ctx, supplierID, filename, data)
	if err != nil {
		return ImportResult{}, err
	}
	return s.ProcessUpload(ctx, upload.ID, opts)
}

// PrepareUpload persists the immutable raw input and the RECEIVED audit
// record. The raw bytes are written first so a crash before processing
// still leaves a replayable record.
func (s *Service) PrepareUpload(ctx context.Context, supplierID uuid.UUID, filename string, data []byte) (CatalogUpload, error) {
	if supplierID == uuid.Nil {
		return CatalogUpload{}, fmt.Errorf("%w: supplier id required", ErrValidation)
	}
	if len(data) == 0 {
		return CatalogUpload{}, ErrEmptyFile
	}
	if filename == "" {
		filename = "catalog.csv"
	}

	upload := CatalogUpload{
		ID:         uuid.New(),
		SupplierID: supplierID,
		Filename:   filename,
		Status:     UploadStatusReceived,
	}
	if s.store != nil {
		obj, err := s.store.Upload(ctx, data, storage.UploadInput{
			Folder:      "uploads/" + supplierID.String(),
			Filename:    filename,
			ContentType: "text/csv",
		})
		if err != nil {
			return CatalogUpload{}, fmt.Errorf("catalog: store raw upload: %w", err)
		}
		upload.RawStorageKey = obj.StorageKey
	}
	if err := s.repo.CreateUpload(ctx, upload); err != nil {
		return CatalogUpload{}, fmt.Errorf("catalog: create upload record: %w", err)
	}
	return upload, nil
}

// ProcessUpload runs the import pipeline for a previously prepared upload.
// A single row's failure never aborts the run; an unexpected error aborts
// the remaining rows and marks the run FAILED while keeping committed
// rows. The audit record is finalised exactly once.
func (s *Service) ProcessUpload(ctx context.Context, uploadID uuid.UUID, opts ImportOptions) (ImportResult, error) {
	upload, err := s.repo.GetUpload(ctx, uploadID)
	if err != nil {
		return ImportResult{}, err
	}
	if upload.Status != UploadStatusReceived {
		return ImportResult{}, fmt.Errorf("%w: upload %s already %s", ErrValidation, uploadID, upload.Status)
	}
	if opts.MinAutoMatchConfidence <= 0 {
		opts.MinAutoMatchConfidence = DefaultMinAutoMatchConfidence
	}

	raw, err := s.loadRaw(ctx, upload)
	if err != nil {
		result := ImportResult{UploadID: upload.ID, Status: UploadStatusFailed, ErrorMessage: err.Error()}
		s.finalize(ctx, upload, result)
		return result, err
	}

	if err := s.repo.SetUploadStatus(ctx, upload.ID, UploadStatusProcessing); err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{UploadID: upload.ID}
	finalized := false
	defer func() {
		if !finalized {
			// Guaranteed-execution path: a panic mid-run still leaves a
			// FAILED record instead of a stuck PROCESSING one.
			result.Status = UploadStatusFailed
			if result.ErrorMessage == "" {
				result.ErrorMessage = "import aborted"
			}
			s.finalize(ctx, upload, result)
		}
	}()

	rows, rejected, parseErr := s.parser.Parse(bytes.NewReader(raw), opts.SkipInvalidRows)
	result.Rejected = rejected
	if parseErr != nil {
		result.Status = UploadStatusFailed
		result.ErrorMessage = parseErr.Error()
		s.finalize(ctx, upload, result)
		finalized = true
		return result, parseErr
	}
	result.RowCount = len(rows)

	var fatal error
	for _, row := range rows {
		rowResult := s.processRow(ctx, upload.SupplierID, row, opts)
		result.Rows = append(result.Rows, rowResult.RowResult)
		switch {
		case rowResult.Success:
			result.SuccessCount++
			if rowResult.NeedsReview {
				result.ReviewCount++
			}
			if rowResult.Enriched {
				result.EnrichedCount++
			}
		default:
			result.FailedCount++
		}
		if rowResult.fatal != nil {
			// Run-level fatal: abort remaining rows, keep committed ones.
			fatal = rowResult.fatal
			break
		}
	}
	result.FailedCount += len(rejected)

	if fatal != nil {
		result.Status = UploadStatusFailed
		result.ErrorMessage = fatal.Error()
	} else {
		result.Status = UploadStatusCompleted
	}
	s.finalize(ctx, upload, result)
	finalized = true

	s.recordAudit(ctx, "", "CATALOG_IMPORT", "catalog_upload", upload.ID.String(), map[string]any{
		"supplier_id": upload.SupplierID.String(),
		"status":      string(result.Status),
		"rows":        result.RowCount,
		"success":     result.SuccessCount,
		"failed":      result.FailedCount,
	})
	if fatal != nil {
		return result, fatal
	}
	return result, nil
}

func (s *Service) loadRaw(ctx context.Context, upload CatalogUpload) ([]byte, error) {
	if s.store == nil || upload.RawStorageKey == "" {
		return nil, fmt.Errorf("%w: upload %s has no stored input", ErrValidation, upload.ID)
	}
	data, err := s.store.Get(ctx, upload.RawStorageKey)
	if err != nil {
		return nil, fmt.Errorf("catalog: load raw upload: %w", err)
	}
	return data, nil
}

func (s *Service) finalize(ctx context.Context, upload CatalogUpload, result ImportResult) {
	upload.Status = result.Status
	upload.RowCount = result.RowCount
	upload.SuccessCount = result.SuccessCount
	upload.FailedCount = result.FailedCount
	upload.ReviewCount = result.ReviewCount
	upload.EnrichedCount = result.EnrichedCount
	upload.ErrorMessage = result.ErrorMessage
	if err := s.repo.FinishUpload(ctx, upload); err != nil {
		s.logger.Error("finalize upload", slog.String("upload_id", upload.ID.String()), slog.Any("error", err))
	}
}

// rowOutcome augments the public RowResult with the run-level fatal error,
// which is not part of the per-row report.
type rowOutcome struct {
	RowResult
	fatal error
}

func (s *Service) processRow(ctx context.Context, supplierID uuid.UUID, row ImportRow, opts ImportOptions) rowOutcome {
	out := rowOutcome{RowResult: RowResult{RowIndex: row.Index, Warnings: row.Warnings}}

	match, err := s.matcher.Match(ctx, supplierID, row)
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
		out.fatal = err
		return out
	}

	decision, err := Decide(match, opts.MinAutoMatchConfidence, opts.CreateNewProducts)
	if err != nil {
		// Row-level recoverable: recorded, run continues.
		out.Errors = append(out.Errors, err.Error())
		return out
	}

	productID, item, created, err := s.write(ctx, supplierID, row, match, decision, opts)
	if err != nil {
		if errors.Is(err, ErrDuplicateLink) || errors.Is(err, ErrDuplicateGTIN) || errors.Is(err, ErrValidation) {
			out.Errors = append(out.Errors, err.Error())
			return out
		}
		out.Errors = append(out.Errors, err.Error())
		out.fatal = err
		return out
	}

	out.Success = true
	out.ProductID = productID
	out.SupplierItemID = item.ID
	out.MatchMethod = item.MatchMethod
	out.MatchConfidence = item.MatchConfidence
	out.NeedsReview = item.NeedsReview
	out.Created = created

	if opts.AutoEnrich && s.enricher != nil {
		gtin, gtinErr := s.enrichmentGTIN(ctx, row, productID)
		switch {
		case gtinErr != nil:
			out.Warnings = append(out.Warnings, fmt.Sprintf("enrichment failed: %v", gtinErr))
		case gtin != "":
			outcome, err := s.enricher.EnrichProduct(ctx, productID, gtin)
			if err != nil {
				// Best effort: enrichment failures never fail the row.
				out.Warnings = append(out.Warnings, fmt.Sprintf("enrichment failed: %v", err))
			} else {
				out.Warnings = append(out.Warnings, outcome.Warnings...)
				out.Enriched = outcome.Enriched()
			}
		}
	}
	return out
}

// enrichmentGTIN resolves the GTIN a row enriches on: the row's own when
// it carries a valid one, otherwise the linked product's. A SKU or fuzzy
// match still enriches when the canonical product knows its GTIN.
func (s *Service) enrichmentGTIN(ctx context.Context, row ImportRow, productID uuid.UUID) (string, error) {
	if gtin := NormalizeGTIN(row.GTIN); gtin != "" && ValidGTIN(gtin) {
		return gtin, nil
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return "", fmt.Errorf("catalog: resolve product gtin: %w", err)
	}
	return product.GTIN, nil
}

// write makes the decision durable inside one row-scoped transaction.
func (s *Service) write(ctx context.Context, supplierID uuid.UUID, row ImportRow, match MatchResult, decision Decision, opts ImportOptions) (uuid.UUID, SupplierItem, bool, error) {
	currency := row.Currency
	if currency == "" {
		currency = strings.ToUpper(opts.DefaultCurrency)
	}

	var (
		item    SupplierItem
		created bool
	)
	productID := match.ProductID

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if decision.Action == ActionCreateNew {
			product := Product{
				ID:           uuid.New(),
				Name:         row.Name,
				Brand:        row.Brand,
				Description:  row.Description,
				Verification: VerificationUnverified,
			}
			if gtin := NormalizeGTIN(row.GTIN); gtin != "" && ValidGTIN(gtin) {
				product.GTIN = gtin
			}
			// Product and link are one atomic step: a failed link insert
			// rolls the product back.
			if err := tx.CreateProduct(ctx, product); err != nil {
				return err
			}
			productID = product.ID
			item = newSupplierItem(supplierID, productID, row, currency, MatchNone, 0, false)
			return tx.CreateSupplierItem(ctx, item)
		}

		existing, err := tx.SupplierItemForUpdate(ctx, supplierID, productID)
		switch {
		case err == nil:
			// Update in place, never a second active link per pair.
			existing.SupplierSKU = firstNonEmpty(row.SKU, existing.SupplierSKU)
			if row.UnitPrice != nil {
				existing.UnitPrice = row.UnitPrice
			}
			if currency != "" {
				existing.Currency = currency
			}
			if row.MinOrderQty != nil {
				existing.MinOrderQty = row.MinOrderQty
			}
			existing.MatchMethod = match.Method
			existing.MatchConfidence = match.Confidence
			existing.NeedsReview = decision.NeedsReview
			if err := tx.UpdateSupplierItem(ctx, existing); err != nil {
				return err
			}
			item = existing
			return nil
		case errors.Is(err, ErrNotFound):
			item = newSupplierItem(supplierID, productID, row, currency, match.Method, match.Confidence, decision.NeedsReview)
			return tx.CreateSupplierItem(ctx, item)
		default:
			return err
		}
	})
	if err != nil {
		return uuid.Nil, SupplierItem{}, false, err
	}
	created = decision.Action == ActionCreateNew
	return productID, item, created, nil
}

func newSupplierItem(supplierID, productID uuid.UUID, row ImportRow, currency string, method MatchMethod, confidence float64, needsReview bool) SupplierItem {
	return SupplierItem{
		ID:              uuid.New(),
		SupplierID:      supplierID,
		ProductID:       productID,
		SupplierSKU:     row.SKU,
		UnitPrice:       row.UnitPrice,
		Currency:        currency,
		MinOrderQty:     row.MinOrderQty,
		MatchMethod:     method,
		MatchConfidence: confidence,
		NeedsReview:     needsReview,
	}
}

// ConfirmMatch clears the review flag and records the confirming actor.
// The linked product is unchanged.
func (s *Service) ConfirmMatch(ctx context.Context, itemID uuid.UUID, actor string) (SupplierItem, error) {
	var item SupplierItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.GetSupplierItem(ctx, itemID)
		if err != nil {
			return err
		}
		found.NeedsReview = false
		found.MatchedBy = actor
		if err := tx.UpdateSupplierItem(ctx, found); err != nil {
			return err
		}
		item = found
		return nil
	})
	if err != nil {
		return SupplierItem{}, err
	}
	s.recordAudit(ctx, actor, "REVIEW_CONFIRM", "supplier_item", itemID.String(), nil)
	return item, nil
}

// ChangeProduct relinks the item to another product as a manual match
// with full confidence.
func (s *Service) ChangeProduct(ctx context.Context, itemID, newProductID uuid.UUID, actor string) (SupplierItem, error) {
	if _, err := s.repo.GetProduct(ctx, newProductID); err != nil {
		return SupplierItem{}, err
	}
	var item SupplierItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.GetSupplierItem(ctx, itemID)
		if err != nil {
			return err
		}
		if existing, err := tx.SupplierItemForUpdate(ctx, found.SupplierID, newProductID); err == nil {
			if existing.ID != found.ID {
				return ErrDuplicateLink
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		found.ProductID = newProductID
		found.MatchMethod = MatchManual
		found.MatchConfidence = 1.0
		found.NeedsReview = false
		found.MatchedBy = actor
		if err := tx.UpdateSupplierItem(ctx, found); err != nil {
			return err
		}
		item = found
		return nil
	})
	if err != nil {
		return SupplierItem{}, err
	}
	s.recordAudit(ctx, actor, "REVIEW_CHANGE_PRODUCT", "supplier_item", itemID.String(), map[string]any{"product_id": newProductID.String()})
	return item, nil
}

// ProductInput carries the fields for a manually created product.
type ProductInput struct {
	GTIN        string `json:"gtin" validate:"omitempty,min=8,max=14"`
	Name        string `json:"name" validate:"required"`
	Brand       string `json:"brand"`
	Description string `json:"description"`
}

// CreateProductAndLink creates a new product and relinks the item to it.
// When the product carries a GTIN, enrichment is triggered best-effort
// after the commit.
func (s *Service) CreateProductAndLink(ctx context.Context, itemID uuid.UUID, input ProductInput, actor string) (SupplierItem, error) {
	if strings.TrimSpace(input.Name) == "" {
		return SupplierItem{}, fmt.Errorf("%w: product name required", ErrValidation)
	}
	gtin := NormalizeGTIN(input.GTIN)
	if gtin != "" && !ValidGTIN(gtin) {
		return SupplierItem{}, fmt.Errorf("%w: invalid gtin %q", ErrValidation, input.GTIN)
	}

	product := Product{
		ID:           uuid.New(),
		GTIN:         gtin,
		Name:         strings.TrimSpace(input.Name),
		Brand:        strings.TrimSpace(input.Brand),
		Description:  strings.TrimSpace(input.Description),
		Verification: VerificationUnverified,
	}
	var item SupplierItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.GetSupplierItem(ctx, itemID)
		if err != nil {
			return err
		}
		if err := tx.CreateProduct(ctx, product); err != nil {
			return err
		}
		found.ProductID = product.ID
		found.MatchMethod = MatchManual
		found.MatchConfidence = 1.0
		found.NeedsReview = false
		found.MatchedBy = actor
		if err := tx.UpdateSupplierItem(ctx, found); err != nil {
			return err
		}
		item = found
		return nil
	})
	if err != nil {
		return SupplierItem{}, err
	}
	s.recordAudit(ctx, actor, "REVIEW_CREATE_PRODUCT", "supplier_item", itemID.String(), map[string]any{"product_id": product.ID.String()})

	if product.GTIN != "" && s.enricher != nil {
		if _, err := s.enricher.EnrichProduct(ctx, product.ID, product.GTIN); err != nil {
			s.logger.Warn("enrich created product",
				slog.String("product_id", product.ID.String()), slog.Any("error", err))
		}
	}
	return item, nil
}

// MarkIgnored excludes the item from uniqueness checks and review queues.
// Items are never hard-deleted.
func (s *Service) MarkIgnored(ctx context.Context, itemID uuid.UUID, actor string) (SupplierItem, error) {
	var item SupplierItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.GetSupplierItem(ctx, itemID)
		if err != nil {
			return err
		}
		found.Ignored = true
		found.NeedsReview = false
		found.MatchedBy = actor
		if err := tx.UpdateSupplierItem(ctx, found); err != nil {
			return err
		}
		item = found
		return nil
	})
	if err != nil {
		return SupplierItem{}, err
	}
	s.recordAudit(ctx, actor, "REVIEW_IGNORE", "supplier_item", itemID.String(), nil)
	return item, nil
}

// GetUpload returns one upload audit record.
func (s *Service) GetUpload(ctx context.Context, id uuid.UUID) (CatalogUpload, error) {
	return s.repo.GetUpload(ctx, id)
}

// ListUploads returns upload audit records for a supplier.
func (s *Service) ListUploads(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]CatalogUpload, int, error) {
	return s.repo.ListUploads(ctx, supplierID, limit, offset)
}

// ListReviewQueue returns active items awaiting review.
func (s *Service) ListReviewQueue(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]SupplierItem, int, error) {
	return s.repo.ListReviewQueue(ctx, supplierID, limit, offset)
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: entity, EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
