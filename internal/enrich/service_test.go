package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/praxis-erp/praxis-erp/internal/assets"
	"github.com/praxis-erp/praxis-erp/internal/catalog"
)

type fakeProducts struct {
	filled       map[uuid.UUID][2]string
	verification map[uuid.UUID]catalog.VerificationStatus
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{
		filled:       make(map[uuid.UUID][2]string),
		verification: make(map[uuid.UUID]catalog.VerificationStatus),
	}
}

func (f *fakeProducts) FillProductFields(_ context.Context, id uuid.UUID, brand, description string) error {
	f.filled[id] = [2]string{brand, description}
	return nil
}

func (f *fakeProducts) SetProductVerification(_ context.Context, id uuid.UUID, status catalog.VerificationStatus) error {
	f.verification[id] = status
	return nil
}

type fakeRegistrar struct {
	media     []assets.Media
	documents []assets.Document
	mediaErr  error
}

func (f *fakeRegistrar) CreateMedia(_ context.Context, m assets.Media) error {
	if f.mediaErr != nil {
		return f.mediaErr
	}
	f.media = append(f.media, m)
	return nil
}

func (f *fakeRegistrar) CreateDocument(_ context.Context, d assets.Document) error {
	f.documents = append(f.documents, d)
	return nil
}

type fakeEnqueuer struct {
	enqueued  []string
	duplicate bool
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, jobType assets.JobType, assetID, productID uuid.UUID, sourceURL string) (assets.AssetJob, bool, error) {
	if f.duplicate {
		return assets.AssetJob{}, false, nil
	}
	f.enqueued = append(f.enqueued, sourceURL)
	return assets.AssetJob{ID: uuid.New(), Type: jobType, AssetID: assetID, ProductID: productID, SourceURL: sourceURL}, true, nil
}

func newTestService(lookup LookupPort, products *fakeProducts, registrar *fakeRegistrar, queue *fakeEnqueuer) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(lookup, products, registrar, queue, logger)
}

func TestEnrichProductVerifiesAndQueuesAssets(t *testing.T) {
	lookup := &fakeLookup{results: map[string]Result{
		"4006381333931": {
			Brand:          "Hartmann",
			Description:    "Sterile gauze pads",
			EnrichedFields: []string{"brand", "description"},
			MediaURLs:      []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
			DocumentURLs:   []string{"https://cdn.example.com/datasheet.pdf"},
		},
	}}
	products := newFakeProducts()
	registrar := &fakeRegistrar{}
	queue := &fakeEnqueuer{}
	svc := newTestService(lookup, products, registrar, queue)
	productID := uuid.New()

	outcome, err := svc.EnrichProduct(context.Background(), productID, "4006381333931")
	require.NoError(t, err)

	require.Equal(t, catalog.VerificationVerified, products.verification[productID])
	require.Equal(t, [2]string{"Hartmann", "Sterile gauze pads"}, products.filled[productID])
	require.Equal(t, []string{"brand", "description"}, outcome.EnrichedFields)
	require.Equal(t, 2, outcome.MediaQueued)
	require.Equal(t, 1, outcome.DocumentsQueued)
	require.True(t, outcome.Enriched())

	require.Len(t, registrar.media, 2)
	require.Len(t, registrar.documents, 1)
	require.Len(t, queue.enqueued, 3)
	for _, m := range registrar.media {
		require.Equal(t, productID, m.ProductID)
	}
}

func TestEnrichProductUnknownGTINMarksFailedLookup(t *testing.T) {
	products := newFakeProducts()
	svc := newTestService(&fakeLookup{}, products, &fakeRegistrar{}, &fakeEnqueuer{})
	productID := uuid.New()

	outcome, err := svc.EnrichProduct(context.Background(), productID, "04210000526001")
	require.NoError(t, err)

	require.Equal(t, catalog.VerificationFailedLookup, products.verification[productID])
	require.False(t, outcome.Enriched())
	require.NotEmpty(t, outcome.Warnings)
}

func TestEnrichProductLookupErrorPropagates(t *testing.T) {
	lookup := lookupFunc(func(context.Context, string) (Result, error) {
		return Result{}, errors.New("upstream timeout")
	})
	products := newFakeProducts()
	svc := newTestService(lookup, products, &fakeRegistrar{}, &fakeEnqueuer{})

	_, err := svc.EnrichProduct(context.Background(), uuid.New(), "4006381333931")
	require.Error(t, err)
	require.Empty(t, products.verification)
}

type lookupFunc func(context.Context, string) (Result, error)

func (f lookupFunc) Lookup(ctx context.Context, gtin string) (Result, error) { return f(ctx, gtin) }

func TestEnrichProductAssetFailureIsWarning(t *testing.T) {
	lookup := &fakeLookup{results: map[string]Result{
		"4006381333931": {
			Brand:     "Hartmann",
			MediaURLs: []string{"https://cdn.example.com/a.jpg"},
		},
	}}
	products := newFakeProducts()
	registrar := &fakeRegistrar{mediaErr: errors.New("insert failed")}
	svc := newTestService(lookup, products, registrar, &fakeEnqueuer{})
	productID := uuid.New()

	outcome, err := svc.EnrichProduct(context.Background(), productID, "4006381333931")
	require.NoError(t, err)

	require.Equal(t, catalog.VerificationVerified, products.verification[productID])
	require.Zero(t, outcome.MediaQueued)
	require.NotEmpty(t, outcome.Warnings)
}

func TestEnrichProductDuplicateJobNotCounted(t *testing.T) {
	lookup := &fakeLookup{results: map[string]Result{
		"4006381333931": {MediaURLs: []string{"https://cdn.example.com/a.jpg"}},
	}}
	svc := newTestService(lookup, newFakeProducts(), &fakeRegistrar{}, &fakeEnqueuer{duplicate: true})

	outcome, err := svc.EnrichProduct(context.Background(), uuid.New(), "4006381333931")
	require.NoError(t, err)
	require.Zero(t, outcome.MediaQueued)
}

func TestEnrichProductSourceErrorsBecomeWarnings(t *testing.T) {
	lookup := &fakeLookup{results: map[string]Result{
		"4006381333931": {
			Brand:    "Hartmann",
			Errors:   []string{"image service unavailable"},
			Warnings: []string{"stale record"},
		},
	}}
	svc := newTestService(lookup, newFakeProducts(), &fakeRegistrar{}, &fakeEnqueuer{})

	outcome, err := svc.EnrichProduct(context.Background(), uuid.New(), "4006381333931")
	require.NoError(t, err)
	require.Contains(t, outcome.Warnings, "stale record")
	require.Contains(t, outcome.Warnings, "enrichment source: image service unavailable")
}
