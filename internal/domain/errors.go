package domain

import "errors"

var (
	// ErrProductNotFound is returned when neither the catalog nor the
	// external database can resolve a product
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidSettings is returned when a settings update contains an
	// out-of-range value; the stored settings remain unchanged
	ErrInvalidSettings = errors.New("invalid settings value")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in the match cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCatalogUnavailable is returned when the retailer API is
	// unreachable or returns a malformed response
	ErrCatalogUnavailable = errors.New("catalog request failed")

	// ErrExternalLookupFailed is returned when the OpenFoodFacts request fails
	ErrExternalLookupFailed = errors.New("openfoodfacts request failed")

	// ErrNotAuthenticated is returned when no valid session cookies are held
	ErrNotAuthenticated = errors.New("not authenticated")
)
