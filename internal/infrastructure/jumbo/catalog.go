package jumbo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"

	"github.com/jumboapi/backend/internal/domain"
)

const productDetailQuery = `
query productDetail($sku: String!) {
  product(sku: $sku) {
    id
    sku
    ean
    brand
    rootCategory
    subtitle
    title
    image
    link
    price {
      price
      promoPrice
      pricePerUnit { price unit }
    }
  }
}`

const productsBatchQuery = `
query Products($skus: [String!]!) {
  products(skus: $skus) {
    sku
    title
    subtitle
    image
    brand
    link
    price {
      price
      promoPrice
      pricePerUnit { price quantity unit }
    }
  }
}`

type pricePerUnitPayload struct {
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

type pricePayload struct {
	Price        int                  `json:"price"`
	PromoPrice   int                  `json:"promoPrice"`
	PricePerUnit *pricePerUnitPayload `json:"pricePerUnit"`
}

type productPayload struct {
	SKU          string       `json:"sku"`
	EAN          string       `json:"ean"`
	Title        string       `json:"title"`
	Subtitle     string       `json:"subtitle"`
	Brand        string       `json:"brand"`
	RootCategory string       `json:"rootCategory"`
	Image        string       `json:"image"`
	Link         string       `json:"link"`
	Price        pricePayload `json:"price"`
}

func (p productPayload) toDomain() domain.CatalogProduct {
	product := domain.CatalogProduct{
		SKU:      p.SKU,
		EAN:      p.EAN,
		Title:    p.Title,
		Subtitle: p.Subtitle,
		Brand:    p.Brand,
		Category: p.RootCategory,
		Image:    p.Image,
		Link:     p.Link,
		Price: domain.ProductPrice{
			Price:      p.Price.Price,
			PromoPrice: p.Price.PromoPrice,
		},
	}
	if ppu := p.Price.PricePerUnit; ppu != nil {
		product.Price.PricePerUnit = &domain.PricePerUnit{
			Price:    ppu.Price,
			Quantity: ppu.Quantity,
			Unit:     ppu.Unit,
		}
	}
	return product
}

// Product links on search pages look like /producten/<slug>-<SKU>.
var productLinkRegex = regexp.MustCompile(`href="/producten/([^"]+?)-(\d{3,}[A-Z]{2,})"`)

var nuxtDataRegex = regexp.MustCompile(`(?s)<script[^>]*id="__NUXT_DATA__"[^>]*>(.*?)</script>`)

// GetBySku fetches full product details for one SKU.
func (c *Client) GetBySku(ctx context.Context, sku string) (*domain.CatalogProduct, error) {
	data, err := c.graphql(ctx, clientNameBasket, productDetailQuery, map[string]string{"sku": sku})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Product *productPayload `json:"product"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed product payload: %v", domain.ErrCatalogUnavailable, err)
	}
	if payload.Product == nil {
		return nil, fmt.Errorf("%w: sku %s", domain.ErrProductNotFound, sku)
	}
	product := payload.Product.toDomain()
	return &product, nil
}

// FetchProducts fetches basic details for multiple SKUs in one GraphQL call.
func (c *Client) FetchProducts(ctx context.Context, skus []string) (map[string]domain.CatalogProduct, error) {
	if len(skus) == 0 {
		return map[string]domain.CatalogProduct{}, nil
	}
	data, err := c.graphql(ctx, clientNameBasket, productsBatchQuery, map[string][]string{"skus": skus})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Products []productPayload `json:"products"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed products payload: %v", domain.ErrCatalogUnavailable, err)
	}
	result := make(map[string]domain.CatalogProduct, len(payload.Products))
	for _, p := range payload.Products {
		result[p.SKU] = p.toDomain()
	}
	return result, nil
}

// Search runs a keyword search against the website and scrapes the product
// links from the result page. The returned candidates carry only the SKU;
// callers fetch details as needed.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.CatalogProduct, error) {
	html, err := c.fetchHTML(ctx, "/producten/", map[string]string{
		"searchType":  "keyword",
		"searchTerms": query,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var results []domain.CatalogProduct
	for _, m := range productLinkRegex.FindAllStringSubmatch(html, -1) {
		sku := m[2]
		if seen[sku] {
			continue
		}
		seen[sku] = true
		results = append(results, domain.CatalogProduct{SKU: sku})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	if c.debug {
		log.Printf("[JUMBO] Search %q returned %d candidates", query, len(results))
	}
	return results, nil
}

// GetByBarcode resolves an exact EAN to a product. The website search page
// embeds the catalog data for barcode queries; the hit is confirmed by
// re-fetching the product and requiring its own EAN to equal the query.
func (c *Client) GetByBarcode(ctx context.Context, ean string) (*domain.CatalogProduct, error) {
	html, err := c.fetchHTML(ctx, "/producten/", map[string]string{
		"searchType":  "keyword",
		"searchTerms": ean,
	})
	if err != nil {
		return nil, err
	}

	sku := extractSkuForBarcode(html, ean)
	if sku == "" {
		return nil, fmt.Errorf("%w: barcode %s", domain.ErrProductNotFound, ean)
	}

	product, err := c.GetBySku(ctx, sku)
	if err != nil {
		return nil, err
	}
	// A keyword hit is not proof: the search may return a related product.
	// Only an EAN that matches the query (modulo a leading zero) counts.
	if product.EAN != ean && product.EAN != "0"+ean && "0"+product.EAN != ean {
		if c.debug {
			log.Printf("[JUMBO] Barcode %s resolved to %s but EAN is %s, rejecting", ean, sku, product.EAN)
		}
		return nil, fmt.Errorf("%w: barcode %s", domain.ErrProductNotFound, ean)
	}
	return product, nil
}

// extractSkuForBarcode digs the SKU for a barcode search out of the result
// page: first from the embedded NUXT state, then from plain product links.
func extractSkuForBarcode(html, ean string) string {
	candidates := []string{ean, "0" + ean}
	if nuxt := nuxtDataRegex.FindStringSubmatch(html); nuxt != nil {
		for _, candidate := range candidates {
			pattern, err := regexp.Compile(`"([A-Z0-9]{6,})","[^"]*","([^"]+)","[^"]*` +
				regexp.QuoteMeta(candidate) + `[^"]*"`)
			if err != nil {
				continue
			}
			if m := pattern.FindStringSubmatch(nuxt[1]); m != nil {
				return m[1]
			}
		}
	}
	if m := productLinkRegex.FindStringSubmatch(html); m != nil {
		return m[2]
	}
	return ""
}
