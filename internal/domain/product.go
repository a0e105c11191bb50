package domain

// PricePerUnit is the unit price of a catalog product (e.g. €1.49 per liter)
type PricePerUnit struct {
	Price    int    `json:"price"`
	Quantity int    `json:"quantity,omitempty"`
	Unit     string `json:"unit"`
}

// ProductPrice holds catalog pricing in euro cents. PromoPrice is zero when
// no promotion is active.
type ProductPrice struct {
	Price        int           `json:"price"`
	PromoPrice   int           `json:"promoPrice,omitempty"`
	PricePerUnit *PricePerUnit `json:"pricePerUnit,omitempty"`
}

// Effective returns the price a customer actually pays: the promo price when
// a promotion is active, the regular price otherwise.
func (p ProductPrice) Effective() int {
	if p.PromoPrice > 0 {
		return p.PromoPrice
	}
	return p.Price
}

// CatalogProduct is a snapshot of a product in the retailer catalog.
// Subtitle carries the pack-size descriptor (e.g. "1,5 l").
type CatalogProduct struct {
	SKU      string       `json:"sku"`
	EAN      string       `json:"ean,omitempty"`
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle,omitempty"`
	Brand    string       `json:"brand,omitempty"`
	Category string       `json:"category,omitempty"`
	Image    string       `json:"image,omitempty"`
	Link     string       `json:"link,omitempty"`
	Price    ProductPrice `json:"price"`
}

// Match provenance values for BarcodeMatchResult.MatchSource.
const (
	MatchSourceCatalog       = "Catalog"
	MatchSourceOpenFoodFacts = "OpenFoodFacts"
)

// BarcodeMatchResult is the outcome of resolving a scanned barcode to a
// catalog product. Verified is true only for an exact catalog barcode hit,
// in which case EANMatchScore is 100 and MatchSource is "Catalog".
type BarcodeMatchResult struct {
	SKU            string       `json:"sku"`
	Title          string       `json:"title"`
	Brand          string       `json:"brand,omitempty"`
	Image          string       `json:"image,omitempty"`
	Price          ProductPrice `json:"price"`
	EAN            string       `json:"ean"`
	ScannedBarcode string       `json:"scannedBarcode"`
	EANMatchScore  int          `json:"eanMatchScore"`
	Verified       bool         `json:"verified"`
	MatchSource    string       `json:"matchSource"`
	MatchedName    string       `json:"matchedName,omitempty"`
}

// ExternalProduct is the record returned by the external product database
// for a barcode: a display name plus the search context used to find the
// product in the primary catalog.
type ExternalProduct struct {
	Name     string `json:"name"`
	Brand    string `json:"brand,omitempty"`
	Quantity string `json:"quantity,omitempty"`
}

// ReceiptLine is one purchased-item row parsed from a digital receipt.
// Prices are in euros as printed. The enrichment fields (SKU onward) are
// populated only when a catalog match at or above the confidence threshold
// was found; otherwise the line keeps its raw form.
type ReceiptLine struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
	IsPromo   bool    `json:"isPromo"`
	IsDeposit bool    `json:"isDeposit"`

	SKU             string        `json:"sku,omitempty"`
	FullTitle       string        `json:"fullTitle,omitempty"`
	Subtitle        string        `json:"subtitle,omitempty"`
	Brand           string        `json:"brand,omitempty"`
	Image           string        `json:"image,omitempty"`
	Link            string        `json:"link,omitempty"`
	CatalogPrice    *ProductPrice `json:"catalogPrice,omitempty"`
	MatchConfidence int           `json:"matchConfidence,omitempty"`
}

// VATLine is one row of the VAT breakdown on a receipt.
type VATLine struct {
	Rate       string `json:"rate"`
	AmountExcl string `json:"amountExcl,omitempty"`
	VATAmount  string `json:"vatAmount,omitempty"`
}

// ReceiptBreakdown is the structured content of a receipt print layout.
type ReceiptBreakdown struct {
	Items         []ReceiptLine `json:"items"`
	Deposits      []ReceiptLine `json:"deposits"`
	Total         float64       `json:"total,omitempty"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	VATSummary    []VATLine     `json:"vatSummary"`
	ItemCount     int           `json:"itemCount,omitempty"`
	ParseError    string        `json:"parseError,omitempty"`
}
