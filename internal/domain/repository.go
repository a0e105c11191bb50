package domain

import (
	"context"
	"time"
)

// CatalogClient defines the operations the matching core needs from the
// retailer catalog.
type CatalogClient interface {
	// GetBySku fetches full product details for a single SKU.
	GetBySku(ctx context.Context, sku string) (*CatalogProduct, error)
	// GetByBarcode resolves an exact EAN to a product; returns
	// ErrProductNotFound when the catalog has no product with that barcode.
	GetByBarcode(ctx context.Context, ean string) (*CatalogProduct, error)
	// Search runs a keyword search and returns up to limit candidate
	// products in result order. Candidates may be sparse (SKU only);
	// callers fetch details with GetBySku or FetchProducts.
	Search(ctx context.Context, query string, limit int) ([]CatalogProduct, error)
	// FetchProducts fetches basic details for multiple SKUs in one call.
	FetchProducts(ctx context.Context, skus []string) (map[string]CatalogProduct, error)
}

// ProductDatabase defines the external (OpenFoodFacts) barcode lookup.
type ProductDatabase interface {
	LookupBarcode(ctx context.Context, barcode string) (*ExternalProduct, error)
}

// CacheEntry is one resolved match stored in the match cache. Barcode keys
// store the full resolution result; receipt keys store the winning SKU and
// its confidence.
type CacheEntry struct {
	SKU        string              `json:"sku"`
	Confidence int                 `json:"confidence,omitempty"`
	Barcode    *BarcodeMatchResult `json:"barcode,omitempty"`
	StoredAt   time.Time           `json:"storedAt"`
}

// MatchCache stores resolved (barcode -> product) and
// (receipt-line-signature -> product) pairs. Entries never expire; Clear is
// the only deletion path.
type MatchCache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Put(ctx context.Context, key string, entry *CacheEntry) error
	Clear(ctx context.Context) error
}

// Credentials are the retailer account login used for session renewal.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SettingsStore persists user-tunable matching settings across restarts.
type SettingsStore interface {
	// Get returns the current settings snapshot.
	Get() (MatchSettings, error)
	// Update validates and persists a partial update; on validation failure
	// the stored settings remain unchanged.
	Update(patch SettingsPatch) (MatchSettings, error)
	// SetCredentials stores (or clears, with an empty username) the saved
	// retailer login.
	SetCredentials(creds Credentials) error
	// Credentials returns the stored login, if any.
	Credentials() (Credentials, bool)
}
