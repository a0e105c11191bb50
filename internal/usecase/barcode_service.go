package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jumboapi/backend/internal/domain"
)

// BarcodeService resolves scanned EAN barcodes to catalog products.
// Resolution order: match cache -> exact catalog barcode hit -> OpenFoodFacts
// fallback search. An absence of match surfaces ErrProductNotFound; a guessed
// partial result is never returned.
type BarcodeService struct {
	catalog  domain.CatalogClient
	external domain.ProductDatabase
	cache    domain.MatchCache
	settings domain.SettingsStore
	debug    bool
}

// NewBarcodeService creates a barcode resolution service.
func NewBarcodeService(
	catalog domain.CatalogClient,
	external domain.ProductDatabase,
	cache domain.MatchCache,
	settings domain.SettingsStore,
	debug bool,
) *BarcodeService {
	return &BarcodeService{
		catalog:  catalog,
		external: external,
		cache:    cache,
		settings: settings,
		debug:    debug,
	}
}

func barcodeCacheKey(barcode string) string {
	return "barcode:" + normalizeBarcode(barcode)
}

// Resolve maps a scanned barcode to a catalog product. The settings snapshot
// is taken once at the start and used for the whole resolution.
func (s *BarcodeService) Resolve(ctx context.Context, barcode string) (*domain.BarcodeMatchResult, error) {
	normalized := normalizeBarcode(barcode)
	if normalized == "" {
		return nil, fmt.Errorf("%w: barcode must contain digits", domain.ErrInvalidRequest)
	}

	settings, err := s.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if settings.UseBarcodeCache {
		if entry, err := s.cache.Get(ctx, barcodeCacheKey(barcode)); err == nil && entry.Barcode != nil {
			// Cached results are returned as stored, never re-scored
			if s.debug {
				log.Printf("[MATCH] Cache hit for barcode %s -> %s", barcode, entry.SKU)
			}
			return entry.Barcode, nil
		}
	}

	product, err := s.catalog.GetByBarcode(ctx, normalized)
	switch {
	case err == nil:
		result := &domain.BarcodeMatchResult{
			SKU:            product.SKU,
			Title:          product.Title,
			Brand:          product.Brand,
			Image:          product.Image,
			Price:          product.Price,
			EAN:            barcode,
			ScannedBarcode: barcode,
			EANMatchScore:  100,
			Verified:       true,
			MatchSource:    domain.MatchSourceCatalog,
		}
		s.store(ctx, barcode, settings, result)
		return result, nil
	case errors.Is(err, domain.ErrProductNotFound):
		// fall through to the external fallback
	default:
		return nil, err
	}

	if !settings.UseOpenFoodFactsFallback {
		return nil, domain.ErrProductNotFound
	}

	if s.debug {
		log.Printf("[MATCH] Barcode %s not in catalog, trying OpenFoodFacts", barcode)
	}

	result, err := s.fallbackLookup(ctx, barcode, settings)
	if err != nil {
		return nil, err
	}
	s.store(ctx, barcode, settings, result)
	return result, nil
}

// store writes a resolution result to the match cache when caching is
// enabled. Concurrent writers for the same barcode computed the same result,
// so last-write-wins is fine.
func (s *BarcodeService) store(ctx context.Context, barcode string, settings domain.MatchSettings, result *domain.BarcodeMatchResult) {
	if !settings.UseBarcodeCache {
		return
	}
	entry := &domain.CacheEntry{
		SKU:      result.SKU,
		Barcode:  result,
		StoredAt: time.Now(),
	}
	if err := s.cache.Put(ctx, barcodeCacheKey(barcode), entry); err != nil {
		log.Printf("[MATCH] Failed to cache barcode %s: %v", barcode, err)
	}
}

// scoredCandidate pairs a fetched catalog candidate with its EAN score and
// the distance of its declared size from the external size descriptor.
type scoredCandidate struct {
	product  *domain.CatalogProduct
	score    int
	sizeDiff float64
}

// fallbackLookup resolves a barcode via OpenFoodFacts: look up the barcode to
// get a product name and size, search the catalog with that context, then
// pick the candidate whose own EAN agrees most with the scanned barcode.
func (s *BarcodeService) fallbackLookup(ctx context.Context, barcode string, settings domain.MatchSettings) (*domain.BarcodeMatchResult, error) {
	external, err := s.external.LookupBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}

	query := buildFallbackQuery(external, settings)
	if s.debug {
		log.Printf("[MATCH] OpenFoodFacts found %q, searching catalog for %q", external.Name, query)
	}

	candidates, err := s.catalog.Search(ctx, query, settings.MaxProductCandidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrProductNotFound
	}

	targetSize, hasTargetSize := extractSize(external.Quantity)

	// Candidate details are independent lookups; fetch and score them
	// concurrently, then choose the winner only after every score is in.
	// Later candidates may score strictly higher than an early "good enough"
	// one, so no early return.
	scored := make([]*scoredCandidate, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, sku string) {
			defer wg.Done()
			product, err := s.catalog.GetBySku(ctx, sku)
			if err != nil || product == nil || product.EAN == "" {
				// Candidates without an EAN cannot be verified against the
				// scanned barcode and are excluded
				return
			}
			sc := &scoredCandidate{
				product:  product,
				score:    EANSimilarity(barcode, product.EAN, settings),
				sizeDiff: sizeDistance(product.Subtitle, targetSize, hasTargetSize),
			}
			scored[i] = sc
			if s.debug {
				log.Printf("[MATCH]   %s: EAN=%s score=%d", sku, product.EAN, sc.score)
			}
		}(i, candidate.SKU)
	}
	wg.Wait()

	var best *scoredCandidate
	for _, sc := range scored {
		if sc == nil || sc.score == 0 {
			continue
		}
		switch {
		case best == nil, sc.score > best.score:
			best = sc
		case sc.score == best.score && sc.sizeDiff < best.sizeDiff:
			// Equal EAN agreement: prefer the candidate whose pack size is
			// closest to the size the search was built around
			best = sc
		}
	}

	if best == nil {
		if s.debug {
			log.Printf("[MATCH] No candidate EAN agrees with %s", barcode)
		}
		return nil, domain.ErrProductNotFound
	}

	return &domain.BarcodeMatchResult{
		SKU:            best.product.SKU,
		Title:          best.product.Title,
		Brand:          best.product.Brand,
		Image:          best.product.Image,
		Price:          best.product.Price,
		EAN:            best.product.EAN,
		ScannedBarcode: barcode,
		EANMatchScore:  best.score,
		Verified:       false,
		MatchSource:    domain.MatchSourceOpenFoodFacts,
		// The external display name, not the catalog title, so the user can
		// verify what the search was actually for
		MatchedName: external.Name,
	}, nil
}

// buildFallbackQuery synthesizes the catalog search string from the external
// record. Including the size descriptor separates a 1.5 L bottle from a
// 6-pack with the same name; the brand prefix is off by default because house
// brands often differ between databases.
func buildFallbackQuery(external *domain.ExternalProduct, settings domain.MatchSettings) string {
	var parts []string
	if settings.UseBrandInSearch && external.Brand != "" {
		brand := external.Brand
		if idx := strings.Index(brand, ","); idx > 0 {
			brand = brand[:idx]
		}
		parts = append(parts, strings.TrimSpace(brand))
	}
	parts = append(parts, external.Name)
	if settings.UseQuantityInSearch && external.Quantity != "" {
		parts = append(parts, external.Quantity)
	}
	return strings.Join(parts, " ")
}

// sizeDistance returns how far a product's declared size is from the target
// size, in normalized grams/millilitres. Unparseable sizes sort last.
func sizeDistance(subtitle string, target float64, hasTarget bool) float64 {
	const unparseable = 1 << 30
	if !hasTarget {
		return unparseable
	}
	size, ok := extractSize(subtitle)
	if !ok {
		return unparseable
	}
	diff := size - target
	if diff < 0 {
		diff = -diff
	}
	return diff
}
