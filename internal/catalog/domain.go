package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Product verification lifecycle.
type VerificationStatus string

const (
	VerificationUnverified   VerificationStatus = "UNVERIFIED"
	VerificationVerified     VerificationStatus = "VERIFIED"
	VerificationFailedLookup VerificationStatus = "FAILED_LOOKUP"
)

// Match methods recorded on supplier items.
type MatchMethod string

const (
	MatchGTINExact MatchMethod = "GTIN_EXACT"
	MatchSKUExact  MatchMethod = "SKU_EXACT"
	MatchFuzzyName MatchMethod = "FUZZY_NAME"
	MatchManual    MatchMethod = "MANUAL"
	MatchNone      MatchMethod = "NONE"
)

// Catalog upload lifecycle statuses.
type UploadStatus string

const (
	UploadStatusReceived   UploadStatus = "RECEIVED"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusCompleted  UploadStatus = "COMPLETED"
	UploadStatusFailed     UploadStatus = "FAILED"
)

// Product is the canonical, cross-supplier product record.
type Product struct {
	ID           uuid.UUID
	GTIN         string
	Name         string
	Brand        string
	Description  string
	Verification VerificationStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SupplierItem links one supplier catalog entry to one canonical product.
// At most one non-ignored item exists per (supplier, product) pair.
type SupplierItem struct {
	ID              uuid.UUID
	SupplierID      uuid.UUID
	ProductID       uuid.UUID
	SupplierSKU     string
	UnitPrice       *float64
	Currency        string
	MinOrderQty     *int
	MatchMethod     MatchMethod
	MatchConfidence float64
	NeedsReview     bool
	Ignored         bool
	MatchedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CatalogUpload is the audit record for one import run. The raw input is
// retained in storage under RawStorageKey for replay.
type CatalogUpload struct {
	ID            uuid.UUID
	SupplierID    uuid.UUID
	Filename      string
	RawStorageKey string
	RowCount      int
	Status        UploadStatus
	SuccessCount  int
	FailedCount   int
	ReviewCount   int
	EnrichedCount int
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// ImportRow is one parsed candidate row from a supplier file.
type ImportRow struct {
	Index        int
	SKU          string
	GTIN         string
	Name         string
	Brand        string
	Description  string
	UnitPrice    *float64
	Currency     string
	MinOrderQty  *int
	StockLevel   *int
	LeadTimeDays *int
	Warnings     []string
}

// RowError describes a rejected input row.
type RowError struct {
	Index   int    `json:"row"`
	Message string `json:"message"`
}

// MatchResult is the matcher's verdict for one row.
type MatchResult struct {
	ProductID  uuid.UUID
	Method     MatchMethod
	Confidence float64
}

// Matched reports whether an existing product was found.
func (m MatchResult) Matched() bool {
	return m.ProductID != uuid.Nil
}

// RowResult is the per-row outcome reported to the caller.
type RowResult struct {
	RowIndex        int         `json:"row"`
	Success         bool        `json:"success"`
	ProductID       uuid.UUID   `json:"product_id,omitempty"`
	SupplierItemID  uuid.UUID   `json:"supplier_item_id,omitempty"`
	MatchMethod     MatchMethod `json:"match_method,omitempty"`
	MatchConfidence float64     `json:"match_confidence"`
	NeedsReview     bool        `json:"needs_review"`
	Created         bool        `json:"created"`
	Enriched        bool        `json:"enriched"`
	Errors          []string    `json:"errors,omitempty"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// ImportResult aggregates one import run.
type ImportResult struct {
	UploadID      uuid.UUID    `json:"upload_id"`
	Status        UploadStatus `json:"status"`
	RowCount      int          `json:"row_count"`
	SuccessCount  int          `json:"success_count"`
	FailedCount   int          `json:"failed_count"`
	ReviewCount   int          `json:"review_count"`
	EnrichedCount int          `json:"enriched_count"`
	Rows          []RowResult  `json:"rows"`
	Rejected      []RowError   `json:"rejected,omitempty"`
	ErrorMessage  string       `json:"error,omitempty"`
}

// ImportOptions controls one import run.
type ImportOptions struct {
	AutoEnrich             bool    `json:"auto_enrich"`
	CreateNewProducts      bool    `json:"create_new_products"`
	SkipInvalidRows        bool    `json:"skip_invalid_rows"`
	MinAutoMatchConfidence float64 `json:"min_auto_match_confidence" validate:"gte=0,lte=1"`
	DefaultCurrency        string  `json:"default_currency" validate:"omitempty,len=3"`
}

// DefaultMinAutoMatchConfidence applies when the option is zero.
const DefaultMinAutoMatchConfidence = 0.90

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("catalog: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("catalog: invalid input")
	// ErrNoMatch occurs when a row matches nothing and product creation is disabled.
	ErrNoMatch = errors.New("catalog: no match found and product creation disabled")
	// ErrDuplicateLink occurs when a second active link for the same
	// (supplier, product) pair is attempted.
	ErrDuplicateLink = errors.New("catalog: duplicate supplier item")
	// ErrDuplicateGTIN occurs when a product insert collides with an
	// existing product's GTIN.
	ErrDuplicateGTIN = errors.New("catalog: duplicate product gtin")
	// ErrEmptyFile occurs when the input has no data rows.
	ErrEmptyFile = errors.New("catalog: no data rows in input")
)
