package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jumboapi/backend/internal/domain"
	"github.com/jumboapi/backend/internal/infrastructure/jumbo"
	"github.com/jumboapi/backend/internal/usecase"
)

// AccountClient is the slice of the retailer client the HTTP layer uses.
type AccountClient interface {
	IsAuthenticated() bool
	AuthInfo() jumbo.AuthInfo
	Login(ctx context.Context, username, password string) error
	GetBasket(ctx context.Context) (json.RawMessage, error)
	AddToBasket(ctx context.Context, sku string, quantity float64) (json.RawMessage, error)
	RemoveFromBasket(ctx context.Context, lineID string) (json.RawMessage, error)
	UpdateBasketQuantity(ctx context.Context, lineID string, quantity float64) (json.RawMessage, error)
	GetLists(ctx context.Context, listLimit, itemLimit int) (json.RawMessage, error)
	GetList(ctx context.Context, listID string, itemLimit int) (json.RawMessage, error)
	GetOrders(ctx context.Context, ordersLimit, receiptsPage, receiptsPageSize int) (json.RawMessage, error)
	GetOrderDetails(ctx context.Context, orderID int64) (json.RawMessage, error)
	GetReceipt(ctx context.Context, transactionID string) (*jumbo.ReceiptDetail, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	client   AccountClient
	catalog  domain.CatalogClient
	barcodes *usecase.BarcodeService
	receipts *usecase.ReceiptService
	settings domain.SettingsStore
	cache    domain.MatchCache
}

// NewHandler creates a new HTTP handler
func NewHandler(
	client AccountClient,
	catalog domain.CatalogClient,
	barcodes *usecase.BarcodeService,
	receipts *usecase.ReceiptService,
	settings domain.SettingsStore,
	cache domain.MatchCache,
) *Handler {
	return &Handler{
		client:   client,
		catalog:  catalog,
		barcodes: barcodes,
		receipts: receipts,
		settings: settings,
		cache:    cache,
	}
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidSettings):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCatalogUnavailable), errors.Is(err, domain.ErrExternalLookupFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"service":       "jumbo-api-backend",
		"version":       "1.0.0",
		"authenticated": h.client.IsAuthenticated(),
	})
}

// AuthStatus reports the session state without touching the network.
func (h *Handler) AuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.client.AuthInfo())
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges account credentials for a fresh session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	if err := h.client.Login(c.Request.Context(), req.Username, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_in", "auth": h.client.AuthInfo()})
}

// GetBasket returns the active basket contents.
func (h *Handler) GetBasket(c *gin.Context) {
	basket, err := h.client.GetBasket(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"basket": basket})
}

type addProductRequest struct {
	SKU      string  `json:"sku" binding:"required"`
	Quantity float64 `json:"quantity"`
}

// AddToBasket adds a product to the basket.
func (h *Handler) AddToBasket(c *gin.Context) {
	var req addProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku is required"})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	basket, err := h.client.AddToBasket(c.Request.Context(), req.SKU, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"basket": basket})
}

type removeProductRequest struct {
	LineID string `json:"lineId" binding:"required"`
}

// RemoveFromBasket removes a basket line.
func (h *Handler) RemoveFromBasket(c *gin.Context) {
	var req removeProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lineId is required"})
		return
	}
	basket, err := h.client.RemoveFromBasket(c.Request.Context(), req.LineID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"basket": basket})
}

type updateQuantityRequest struct {
	Quantity float64 `json:"quantity" binding:"required"`
}

// UpdateBasketItem changes the quantity of a basket line.
func (h *Handler) UpdateBasketItem(c *gin.Context) {
	lineID := c.Param("lineId")
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be a positive number"})
		return
	}
	basket, err := h.client.UpdateBasketQuantity(c.Request.Context(), lineID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"basket": basket})
}

// GetLists returns the customer shopping lists.
func (h *Handler) GetLists(c *gin.Context) {
	lists, err := h.client.GetLists(c.Request.Context(), 20, 10)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

// GetList returns one shopping list with full product details.
func (h *Handler) GetList(c *gin.Context) {
	list, err := h.client.GetList(c.Request.Context(), c.Param("listId"), 100)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetOrders returns online orders and store receipt history.
func (h *Handler) GetOrders(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	page := queryInt(c, "page", 0)
	pageSize := queryInt(c, "page_size", 10)

	orders, err := h.client.GetOrders(c.Request.Context(), limit, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrderDetails returns one order including all product lines.
func (h *Handler) GetOrderDetails(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order id must be numeric"})
		return
	}
	order, err := h.client.GetOrderDetails(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Online receipt transaction IDs start with the numeric order ID.
var onlineOrderIDRegex = regexp.MustCompile(`^(\d+)-`)

const receiptSourceOnline = "ONLINE"

// GetReceipt returns a digital receipt with parsed line items, totals, the
// VAT breakdown and, for store receipts, catalog-matched products.
func (h *Handler) GetReceipt(c *gin.Context) {
	// Wildcard route: transaction IDs contain slashes
	transactionID := strings.TrimPrefix(c.Param("transactionId"), "/")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction id is required"})
		return
	}

	receipt, err := h.client.GetReceipt(c.Request.Context(), transactionID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"transactionId":   receipt.TransactionID,
		"purchaseEndOn":   receipt.PurchaseEndOn,
		"receiptSource":   receipt.ReceiptSource,
		"store":           receipt.Store,
		"customerDetails": receipt.CustomerDetails,
	}
	if receipt.ReceiptImage != nil {
		response["points"] = receipt.ReceiptImage.ReceiptPoints
	}
	if receipt.ReceiptSource == receiptSourceOnline {
		if m := onlineOrderIDRegex.FindStringSubmatch(transactionID); m != nil {
			if orderID, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				response["orderId"] = orderID
			}
		}
	}

	if receipt.ReceiptImage != nil && receipt.ReceiptImage.Type == "JSON" && receipt.ReceiptImage.Image != "" {
		breakdown := usecase.ParseReceiptDocument(receipt.ReceiptImage.Image)
		// Online receipts already carry full product data via the order;
		// only store receipts need catalog matching
		if len(breakdown.Items) > 0 && receipt.ReceiptSource != receiptSourceOnline {
			enriched, err := h.receipts.EnrichItems(c.Request.Context(), breakdown.Items)
			if err != nil {
				log.Printf("[HTTP] Receipt enrichment failed for %s: %v", transactionID, err)
			} else {
				breakdown.Items = enriched
			}
		}
		response["items"] = breakdown.Items
		response["deposits"] = breakdown.Deposits
		response["total"] = breakdown.Total
		response["paymentMethod"] = breakdown.PaymentMethod
		response["vatSummary"] = breakdown.VATSummary
		response["itemCount"] = breakdown.ItemCount
		if breakdown.ParseError != "" {
			response["parseError"] = breakdown.ParseError
		}
	}

	c.JSON(http.StatusOK, response)
}

// SearchProduct looks up a single product by its SKU.
func (h *Handler) SearchProduct(c *gin.Context) {
	sku := strings.TrimSpace(c.Query("sku"))
	if sku == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku query parameter is required"})
		return
	}
	product, err := h.catalog.GetBySku(c.Request.Context(), sku)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type barcodeRequest struct {
	Barcode string `json:"barcode" binding:"required"`
}

// LookupBarcode resolves a scanned EAN barcode to a catalog product.
func (h *Handler) LookupBarcode(c *gin.Context) {
	var req barcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "barcode is required"})
		return
	}
	result, err := h.barcodes.Resolve(c.Request.Context(), req.Barcode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSettings returns the current matching settings.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings applies a partial settings update.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch domain.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}
	updated, err := h.settings.Update(patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateCredentials stores or clears the saved retailer login.
func (h *Handler) UpdateCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials payload"})
		return
	}
	if err := h.settings.SetCredentials(domain.Credentials{
		Username: req.Username,
		Password: req.Password,
	}); err != nil {
		respondError(c, err)
		return
	}
	status := "saved"
	if req.Username == "" {
		status = "cleared"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// ClearMatchCache drops every cached product match.
func (h *Handler) ClearMatchCache(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
