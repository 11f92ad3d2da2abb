package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScheduler struct {
	scheduled []uuid.UUID
	opts      ImportOptions
}

func (f *fakeScheduler) ScheduleImport(_ context.Context, uploadID uuid.UUID, opts ImportOptions) error {
	f.scheduled = append(f.scheduled, uploadID)
	f.opts = opts
	return nil
}

func newTestRouter(repo *fakeRepo, scheduler ImportScheduler) chi.Router {
	svc := newTestService(repo, nil)
	handler := NewHandler(discardTestLogger(), svc, scheduler, nil, 0)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleImportSynchronous(t *testing.T) {
	repo := newFakeRepo()
	productID := uuid.New()
	repo.products[productID] = Product{ID: productID, GTIN: "4006381333931", Name: "Gauze Pads"}
	router := newTestRouter(repo, nil)

	body, contentType := multipartUpload(t, map[string]string{
		"supplier_id": uuid.NewString(),
	}, "catalog.csv", "ean,name\n4006381333931,Gauze Pads\n")

	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, UploadStatusCompleted, result.Status)
	require.Equal(t, 1, result.SuccessCount)
}

func TestHandleImportFailedRunReportsRowDetail(t *testing.T) {
	repo := newFakeRepo()
	productID := uuid.New()
	repo.products[productID] = Product{ID: productID, GTIN: "4006381333931", Name: "Gauze Pads"}
	router := newTestRouter(repo, nil)

	// Second row has no product name; with skip_invalid_rows off the
	// run fails, but the response still carries the rejected row.
	body, contentType := multipartUpload(t, map[string]string{
		"supplier_id": uuid.NewString(),
	}, "catalog.csv", "ean,name\n4006381333931,Gauze Pads\n4049500319959,\n")

	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var result ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, UploadStatusFailed, result.Status)
	require.Len(t, result.Rejected, 1)
	require.Equal(t, 2, result.Rejected[0].Index)
	require.NotEmpty(t, result.ErrorMessage)
}

func TestHandleImportAsyncSchedulesJob(t *testing.T) {
	repo := newFakeRepo()
	scheduler := &fakeScheduler{}
	router := newTestRouter(repo, scheduler)

	body, contentType := multipartUpload(t, map[string]string{
		"supplier_id":         uuid.NewString(),
		"async":               "true",
		"create_new_products": "true",
		"min_confidence":      "0.8",
	}, "catalog.csv", "name\nGauze Pads\n")

	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, scheduler.scheduled, 1)
	require.True(t, scheduler.opts.CreateNewProducts)
	require.Equal(t, 0.8, scheduler.opts.MinAutoMatchConfidence)

	// The upload stays RECEIVED until the worker picks it up.
	upload := repo.uploads[scheduler.scheduled[0]]
	require.Equal(t, UploadStatusReceived, upload.Status)
}

func TestHandleImportRejectsBadSupplierID(t *testing.T) {
	router := newTestRouter(newFakeRepo(), nil)

	body, contentType := multipartUpload(t, map[string]string{
		"supplier_id": "not-a-uuid",
	}, "catalog.csv", "name\nGauze\n")

	req := httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandleGetImport(t *testing.T) {
	repo := newFakeRepo()
	uploadID := uuid.New()
	repo.uploads[uploadID] = CatalogUpload{ID: uploadID, SupplierID: uuid.New(), Status: UploadStatusCompleted, RowCount: 3}
	router := newTestRouter(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/imports/"+uploadID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uploadID.String(), resp["id"])

	req = httptest.NewRequest(http.MethodGet, "/imports/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleReviewQueue(t *testing.T) {
	repo := newFakeRepo()
	itemID := uuid.New()
	repo.items[itemID] = SupplierItem{ID: itemID, SupplierID: uuid.New(), ProductID: uuid.New(), NeedsReview: true, MatchMethod: MatchFuzzyName, MatchConfidence: 0.7}
	router := newTestRouter(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/review", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items []itemResponse `json:"items"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, itemID, resp.Items[0].ID)
}

func TestHandleConfirm(t *testing.T) {
	repo := newFakeRepo()
	itemID := uuid.New()
	repo.items[itemID] = SupplierItem{ID: itemID, SupplierID: uuid.New(), ProductID: uuid.New(), NeedsReview: true}
	router := newTestRouter(repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/items/"+itemID.String()+"/confirm", strings.NewReader(`{"matched_by":"dr.mueller"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, repo.items[itemID].NeedsReview)
}

func TestHandleConfirmValidatesBody(t *testing.T) {
	repo := newFakeRepo()
	itemID := uuid.New()
	repo.items[itemID] = SupplierItem{ID: itemID}
	router := newTestRouter(repo, nil)

	// matched_by is required.
	req := httptest.NewRequest(http.MethodPost, "/items/"+itemID.String()+"/confirm", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChangeProductConflict(t *testing.T) {
	repo := newFakeRepo()
	supplierID := uuid.New()
	targetProductID := uuid.New()
	repo.products[targetProductID] = Product{ID: targetProductID, Name: "Gauze"}
	existingID := uuid.New()
	repo.items[existingID] = SupplierItem{ID: existingID, SupplierID: supplierID, ProductID: targetProductID}
	itemID := uuid.New()
	repo.items[itemID] = SupplierItem{ID: itemID, SupplierID: supplierID, ProductID: uuid.New()}
	router := newTestRouter(repo, nil)

	payload := `{"product_id":"` + targetProductID.String() + `","matched_by":"dr.mueller"}`
	req := httptest.NewRequest(http.MethodPost, "/items/"+itemID.String()+"/product", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleCreateProduct(t *testing.T) {
	repo := newFakeRepo()
	itemID := uuid.New()
	repo.items[itemID] = SupplierItem{ID: itemID, SupplierID: uuid.New(), ProductID: uuid.New(), NeedsReview: true}
	router := newTestRouter(repo, nil)

	payload := `{"name":"Ultrasound Gel 250ml","gtin":"4006381333931","matched_by":"dr.mueller"}`
	req := httptest.NewRequest(http.MethodPost, "/items/"+itemID.String()+"/create-product", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.products, 1)
}
