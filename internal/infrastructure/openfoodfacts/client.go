package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jumboapi/backend/internal/domain"
	"golang.org/x/time/rate"
)

// Client handles communication with the Open Food Facts product database
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new Open Food Facts client. The public API asks for
// at most 100 product lookups per minute.
func NewClient(baseURL string) *Client {
	limiter := rate.NewLimiter(rate.Limit(100.0/60.0), 5)

	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     baseURL,
		rateLimiter: limiter,
	}
}

// SetDebug toggles lookup logging.
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

type productPayload struct {
	ProductName   string `json:"product_name"`
	ProductNameNL string `json:"product_name_nl"`
	Brands        string `json:"brands"`
	Quantity      string `json:"quantity"`
}

type lookupResponse struct {
	Status  int            `json:"status"`
	Product productPayload `json:"product"`
}

// LookupBarcode fetches the product registered for a barcode. Returns
// ErrProductNotFound when the barcode is unknown to the database.
func (c *Client) LookupBarcode(ctx context.Context, barcode string) (*domain.ExternalProduct, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	reqURL := fmt.Sprintf("%s/api/v2/product/%s", c.baseURL, barcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "JumboAPI/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		if c.debug {
			log.Printf("[OFF] Barcode %s not found", barcode)
		}
		return nil, domain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrExternalLookupFailed, resp.StatusCode, string(body))
	}

	var parsed lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Status != 1 {
		return nil, domain.ErrProductNotFound
	}

	// The Dutch name, when present, matches the local catalog better
	name := parsed.Product.ProductNameNL
	if name == "" {
		name = parsed.Product.ProductName
	}
	if name == "" {
		return nil, domain.ErrProductNotFound
	}

	product := &domain.ExternalProduct{
		Name:     name,
		Brand:    parsed.Product.Brands,
		Quantity: parsed.Product.Quantity,
	}
	if c.debug {
		log.Printf("[OFF] Barcode %s resolved to %q (%s, %s)", barcode, product.Name, product.Brand, product.Quantity)
	}
	return product, nil
}
