package catalog

import (
	"time"

	"github.com/google/uuid"
)

type uploadResponse struct {
	ID            uuid.UUID    `json:"id"`
	SupplierID    uuid.UUID    `json:"supplier_id"`
	Filename      string       `json:"filename"`
	Status        UploadStatus `json:"status"`
	RowCount      int          `json:"row_count"`
	SuccessCount  int          `json:"success_count"`
	FailedCount   int          `json:"failed_count"`
	ReviewCount   int          `json:"review_count"`
	EnrichedCount int          `json:"enriched_count"`
	ErrorMessage  string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

func newUploadResponse(u CatalogUpload) uploadResponse {
	return uploadResponse{
		ID:            u.ID,
		SupplierID:    u.SupplierID,
		Filename:      u.Filename,
		Status:        u.Status,
		RowCount:      u.RowCount,
		SuccessCount:  u.SuccessCount,
		FailedCount:   u.FailedCount,
		ReviewCount:   u.ReviewCount,
		EnrichedCount: u.EnrichedCount,
		ErrorMessage:  u.ErrorMessage,
		CreatedAt:     u.CreatedAt,
		CompletedAt:   u.CompletedAt,
	}
}

type itemResponse struct {
	ID              uuid.UUID   `json:"id"`
	SupplierID      uuid.UUID   `json:"supplier_id"`
	ProductID       uuid.UUID   `json:"product_id"`
	SupplierSKU     string      `json:"supplier_sku,omitempty"`
	UnitPrice       *float64    `json:"unit_price,omitempty"`
	Currency        string      `json:"currency,omitempty"`
	MinOrderQty     *int        `json:"min_order_qty,omitempty"`
	MatchMethod     MatchMethod `json:"match_method"`
	MatchConfidence float64     `json:"match_confidence"`
	NeedsReview     bool        `json:"needs_review"`
	Ignored         bool        `json:"ignored"`
	MatchedBy       string      `json:"matched_by,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func newItemResponse(it SupplierItem) itemResponse {
	return itemResponse{
		ID:              it.ID,
		SupplierID:      it.SupplierID,
		ProductID:       it.ProductID,
		SupplierSKU:     it.SupplierSKU,
		UnitPrice:       it.UnitPrice,
		Currency:        it.Currency,
		MinOrderQty:     it.MinOrderQty,
		MatchMethod:     it.MatchMethod,
		MatchConfidence: it.MatchConfidence,
		NeedsReview:     it.NeedsReview,
		Ignored:         it.Ignored,
		MatchedBy:       it.MatchedBy,
		UpdatedAt:       it.UpdatedAt,
	}
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type acceptedResponse struct {
	UploadID uuid.UUID    `json:"upload_id"`
	Status   UploadStatus `json:"status"`
}

type confirmRequest struct {
	MatchedBy string `json:"matched_by" validate:"required"`
}

type changeProductRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	MatchedBy string    `json:"matched_by" validate:"required"`
}

type createProductRequest struct {
	ProductInput
	MatchedBy string `json:"matched_by" validate:"required"`
}
