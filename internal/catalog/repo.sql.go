package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-erp/praxis-erp/internal/platform/db"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. One
// import row is written inside one transaction.
type TxRepository interface {
	CreateProduct(ctx context.Context, product Product) error
	SupplierItemForUpdate(ctx context.Context, supplierID, productID uuid.UUID) (SupplierItem, error)
	CreateSupplierItem(ctx context.Context, item SupplierItem) error
	UpdateSupplierItem(ctx context.Context, item SupplierItem) error
	GetSupplierItem(ctx context.Context, id uuid.UUID) (SupplierItem, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const productColumns = `id, COALESCE(gtin, ''), name, COALESCE(brand, ''), COALESCE(description, ''), verification, created_at, updated_at`

const supplierItemColumns = `id, supplier_id, product_id, COALESCE(supplier_sku, ''), unit_price, COALESCE(currency, ''), min_order_qty, match_method, match_confidence, needs_review, ignored, COALESCE(matched_by, ''), created_at, updated_at`

// ProductByGTIN finds a product by GTIN; lengths 8-14 are compared
// zero-padded so EAN-13 and GTIN-14 codings of one article collide.
func (r *Repository) ProductByGTIN(ctx context.Context, gtin string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products
WHERE gtin IS NOT NULL AND lpad(gtin, 14, '0') = lpad($1, 14, '0')`, gtin)
	return scanProduct(row)
}

// GetProduct fetches a product by ID.
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// SupplierItemBySKU finds the active supplier item carrying the SKU,
// case-insensitive and trimmed.
func (r *Repository) SupplierItemBySKU(ctx context.Context, supplierID uuid.UUID, sku string) (SupplierItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+supplierItemColumns+` FROM supplier_items
WHERE supplier_id = $1 AND lower(btrim(supplier_sku)) = lower(btrim($2)) AND NOT ignored`, supplierID, sku)
	return scanSupplierItem(row)
}

// ProductsByNameTokens pre-filters fuzzy-match candidates by shared name
// or brand token.
func (r *Repository) ProductsByNameTokens(ctx context.Context, tokens []string, limit int) ([]Product, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		patterns = append(patterns, "%"+escapeLikePattern(t)+"%")
	}
	if limit <= 0 {
		limit = 25
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE name ILIKE ANY($1) OR COALESCE(brand, '') ILIKE ANY($1)
LIMIT $2`, patterns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// GetSupplierItem fetches one supplier item by ID.
func (r *Repository) GetSupplierItem(ctx context.Context, id uuid.UUID) (SupplierItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+supplierItemColumns+` FROM supplier_items WHERE id = $1`, id)
	return scanSupplierItem(row)
}

// ListReviewQueue returns active items flagged for review, oldest first.
func (r *Repository) ListReviewQueue(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]SupplierItem, int, error) {
	where := ` FROM supplier_items WHERE needs_review AND NOT ignored`
	args := []any{}
	if supplierID != uuid.Nil {
		where += ` AND supplier_id = $1`
		args = append(args, supplierID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + supplierItemColumns + where + ` ORDER BY created_at ASC LIMIT ` + itoa(len(args)+1) + ` OFFSET ` + itoa(len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []SupplierItem
	for rows.Next() {
		item, err := scanSupplierItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// SetProductVerification updates the verification status after an
// enrichment attempt.
func (r *Repository) SetProductVerification(ctx context.Context, id uuid.UUID, status VerificationStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET verification = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FillProductFields sets brand/description only where currently empty;
// enrichment never overwrites curated data.
func (r *Repository) FillProductFields(ctx context.Context, id uuid.UUID, brand, description string) error {
	_, err := r.pool.Exec(ctx, `UPDATE products SET
brand = COALESCE(NULLIF(brand, ''), NULLIF($1, '')),
description = COALESCE(NULLIF(description, ''), NULLIF($2, '')),
updated_at = NOW()
WHERE id = $3`, brand, description, id)
	return err
}

// CreateUpload inserts the audit record for an import run.
func (r *Repository) CreateUpload(ctx context.Context, upload CatalogUpload) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO catalog_uploads (id, supplier_id, filename, raw_storage_key, row_count, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		upload.ID, upload.SupplierID, upload.Filename, nullString(upload.RawStorageKey), upload.RowCount, string(upload.Status))
	return err
}

// SetUploadStatus transitions the run state machine.
func (r *Repository) SetUploadStatus(ctx context.Context, id uuid.UUID, status UploadStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE catalog_uploads SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishUpload writes the terminal status and aggregate counts exactly once.
func (r *Repository) FinishUpload(ctx context.Context, upload CatalogUpload) error {
	tag, err := r.pool.Exec(ctx, `UPDATE catalog_uploads SET
status = $1, row_count = $2, success_count = $3, failed_count = $4, review_count = $5, enriched_count = $6,
error_message = NULLIF($7, ''), completed_at = NOW()
WHERE id = $8 AND completed_at IS NULL`,
		string(upload.Status), upload.RowCount, upload.SuccessCount, upload.FailedCount,
		upload.ReviewCount, upload.EnrichedCount, upload.ErrorMessage, upload.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUpload fetches one upload audit record.
func (r *Repository) GetUpload(ctx context.Context, id uuid.UUID) (CatalogUpload, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, supplier_id, filename, COALESCE(raw_storage_key, ''), row_count, status,
success_count, failed_count, review_count, enriched_count, COALESCE(error_message, ''), created_at, completed_at
FROM catalog_uploads WHERE id = $1`, id)
	return scanUpload(row)
}

// ListUploads returns upload audit records, newest first.
func (r *Repository) ListUploads(ctx context.Context, supplierID uuid.UUID, limit, offset int) ([]CatalogUpload, int, error) {
	where := ` FROM catalog_uploads WHERE 1=1`
	args := []any{}
	if supplierID != uuid.Nil {
		where += ` AND supplier_id = $1`
		args = append(args, supplierID)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, supplier_id, filename, COALESCE(raw_storage_key, ''), row_count, status,
success_count, failed_count, review_count, enriched_count, COALESCE(error_message, ''), created_at, completed_at` +
		where + ` ORDER BY created_at DESC LIMIT ` + itoa(len(args)+1) + ` OFFSET ` + itoa(len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var uploads []CatalogUpload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, 0, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, total, rows.Err()
}

func (r *txRepository) CreateProduct(ctx context.Context, product Product) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO products (id, gtin, name, brand, description, verification, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		product.ID, nullString(product.GTIN), product.Name, nullString(product.Brand),
		nullString(product.Description), string(product.Verification))
	return mapUniqueViolation(err)
}

// SupplierItemForUpdate locks the active link row for the pair so
// concurrent rows targeting the same product cannot both insert.
func (r *txRepository) SupplierItemForUpdate(ctx context.Context, supplierID, productID uuid.UUID) (SupplierItem, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+supplierItemColumns+` FROM supplier_items
WHERE supplier_id = $1 AND product_id = $2 AND NOT ignored FOR UPDATE`, supplierID, productID)
	return scanSupplierItem(row)
}

func (r *txRepository) CreateSupplierItem(ctx context.Context, item SupplierItem) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO supplier_items
(id, supplier_id, product_id, supplier_sku, unit_price, currency, min_order_qty,
 match_method, match_confidence, needs_review, ignored, matched_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`,
		item.ID, item.SupplierID, item.ProductID, nullString(item.SupplierSKU), item.UnitPrice,
		nullString(item.Currency), item.MinOrderQty, string(item.MatchMethod), item.MatchConfidence,
		item.NeedsReview, item.Ignored, nullString(item.MatchedBy))
	return mapUniqueViolation(err)
}

func (r *txRepository) UpdateSupplierItem(ctx context.Context, item SupplierItem) error {
	tag, err := r.tx.Exec(ctx, `UPDATE supplier_items SET
product_id = $1, supplier_sku = $2, unit_price = $3, currency = $4, min_order_qty = $5,
match_method = $6, match_confidence = $7, needs_review = $8, ignored = $9, matched_by = $10, updated_at = NOW()
WHERE id = $11`,
		item.ProductID, nullString(item.SupplierSKU), item.UnitPrice, nullString(item.Currency),
		item.MinOrderQty, string(item.MatchMethod), item.MatchConfidence, item.NeedsReview,
		item.Ignored, nullString(item.MatchedBy), item.ID)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) GetSupplierItem(ctx context.Context, id uuid.UUID) (SupplierItem, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+supplierItemColumns+` FROM supplier_items WHERE id = $1`, id)
	return scanSupplierItem(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.GTIN, &p.Name, &p.Brand, &p.Description, &p.Verification, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func scanSupplierItem(row rowScanner) (SupplierItem, error) {
	var item SupplierItem
	err := row.Scan(&item.ID, &item.SupplierID, &item.ProductID, &item.SupplierSKU, &item.UnitPrice,
		&item.Currency, &item.MinOrderQty, &item.MatchMethod, &item.MatchConfidence,
		&item.NeedsReview, &item.Ignored, &item.MatchedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierItem{}, ErrNotFound
		}
		return SupplierItem{}, err
	}
	return item, nil
}

func scanUpload(row rowScanner) (CatalogUpload, error) {
	var u CatalogUpload
	var completedAt *time.Time
	err := row.Scan(&u.ID, &u.SupplierID, &u.Filename, &u.RawStorageKey, &u.RowCount, &u.Status,
		&u.SuccessCount, &u.FailedCount, &u.ReviewCount, &u.EnrichedCount, &u.ErrorMessage,
		&u.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CatalogUpload{}, ErrNotFound
		}
		return CatalogUpload{}, err
	}
	u.CompletedAt = completedAt
	return u, nil
}

// escapeLikePattern neutralizes LIKE metacharacters in a token so it
// matches literally inside an ILIKE pattern.
func escapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "gtin") {
		return ErrDuplicateGTIN
	}
	return ErrDuplicateLink
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func itoa(n int) string {
	return "$" + strconv.Itoa(n)
}
