package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/praxis-erp/praxis-erp/internal/assets"
	"github.com/praxis-erp/praxis-erp/internal/catalog"
)

// ProductWriter is the slice of the catalog repository the enricher
// needs: filling empty attributes and recording the verification state.
type ProductWriter interface {
	FillProductFields(ctx context.Context, id uuid.UUID, brand, description string) error
	SetProductVerification(ctx context.Context, id uuid.UUID, status catalog.VerificationStatus) error
}

// AssetRegistrar creates the media and document rows a lookup refers to.
type AssetRegistrar interface {
	CreateMedia(ctx context.Context, media assets.Media) error
	CreateDocument(ctx context.Context, doc assets.Document) error
}

// JobEnqueuer defers asset downloads to the durable job queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType assets.JobType, assetID, productID uuid.UUID, sourceURL string) (assets.AssetJob, bool, error)
}

// Service implements product enrichment: look up the GTIN, fill in
// attributes the catalog does not have yet, and register any referenced
// media and documents as download jobs. Downloads never happen on the
// import path.
type Service struct {
	lookup    LookupPort
	products  ProductWriter
	registrar AssetRegistrar
	queue     JobEnqueuer
	logger    *slog.Logger
}

// NewService constructs the enrichment service.
func NewService(lookup LookupPort, products ProductWriter, registrar AssetRegistrar, queue JobEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		lookup:    lookup,
		products:  products,
		registrar: registrar,
		queue:     queue,
		logger:    logger,
	}
}

// EnrichProduct looks up the GTIN and applies whatever the source knows.
// A GTIN unknown to the source marks the product FAILED_LOOKUP; a
// successful lookup marks it VERIFIED. Asset registration failures
// degrade to warnings so one bad URL does not void the rest.
func (s *Service) EnrichProduct(ctx context.Context, productID uuid.UUID, gtin string) (catalog.EnrichmentOutcome, error) {
	var outcome catalog.EnrichmentOutcome

	result, err := s.lookup.Lookup(ctx, gtin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if verr := s.products.SetProductVerification(ctx, productID, catalog.VerificationFailedLookup); verr != nil {
				return outcome, verr
			}
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("gtin %s not known to enrichment source", gtin))
			return outcome, nil
		}
		return outcome, err
	}

	if result.Brand != "" || result.Description != "" {
		if err := s.products.FillProductFields(ctx, productID, result.Brand, result.Description); err != nil {
			return outcome, err
		}
	}
	outcome.EnrichedFields = result.EnrichedFields
	outcome.Warnings = append(outcome.Warnings, result.Warnings...)
	for _, msg := range result.Errors {
		outcome.Warnings = append(outcome.Warnings, "enrichment source: "+msg)
	}

	if err := s.products.SetProductVerification(ctx, productID, catalog.VerificationVerified); err != nil {
		return outcome, err
	}

	for _, rawURL := range result.MediaURLs {
		queued, err := s.registerMedia(ctx, productID, rawURL)
		if err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("media %s: %v", rawURL, err))
			continue
		}
		if queued {
			outcome.MediaQueued++
		}
	}
	for _, rawURL := range result.DocumentURLs {
		queued, err := s.registerDocument(ctx, productID, rawURL)
		if err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("document %s: %v", rawURL, err))
			continue
		}
		if queued {
			outcome.DocumentsQueued++
		}
	}

	s.logger.Debug("product enriched",
		slog.String("product_id", productID.String()),
		slog.String("gtin", gtin),
		slog.Int("fields", len(outcome.EnrichedFields)),
		slog.Int("media_queued", outcome.MediaQueued),
		slog.Int("documents_queued", outcome.DocumentsQueued))
	return outcome, nil
}

func (s *Service) registerMedia(ctx context.Context, productID uuid.UUID, sourceURL string) (bool, error) {
	media := assets.Media{ID: uuid.New(), ProductID: productID, SourceURL: sourceURL}
	if err := s.registrar.CreateMedia(ctx, media); err != nil {
		return false, err
	}
	_, created, err := s.queue.Enqueue(ctx, assets.JobMediaDownload, media.ID, productID, sourceURL)
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *Service) registerDocument(ctx context.Context, productID uuid.UUID, sourceURL string) (bool, error) {
	doc := assets.Document{ID: uuid.New(), ProductID: productID, SourceURL: sourceURL}
	if err := s.registrar.CreateDocument(ctx, doc); err != nil {
		return false, err
	}
	_, created, err := s.queue.Enqueue(ctx, assets.JobDocumentDownload, doc.ID, productID, sourceURL)
	if err != nil {
		return false, err
	}
	return created, nil
}
