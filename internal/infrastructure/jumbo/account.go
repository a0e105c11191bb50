package jumbo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jumboapi/backend/internal/domain"
)

// Thin pass-through operations against the account: basket, shopping lists,
// orders and receipts. No matching logic lives here; payloads are forwarded
// as the API returns them.

const activeBasketQuery = `
{
  activeBasket {
    ... on ActiveBasketResult {
      basket {
        id
        totalProductCount
        type
        lines {
          sku
          id
          quantity
          details {
            sku title subtitle brand image link category
            price {
              price promoPrice
              pricePerUnit { price quantity unit }
            }
            availability { availability isAvailable label }
          }
        }
      }
    }
    ... on BasketError { errorMessage reason }
  }
}`

const addBasketLinesMutation = `
mutation AddBasketLines($input: AddBasketLinesInput!) {
  addBasketLines(input: $input) {
    ... on Basket {
      id totalProductCount
      lines { id sku quantity details { sku title } }
    }
    ... on Error { reason errorMessage friendlyMessage }
  }
}`

const removeBasketLinesMutation = `
mutation RemoveBasketLines($input: RemoveBasketLinesInput!) {
  removeBasketLines(input: $input) {
    ... on Basket {
      id totalProductCount
      lines { id sku quantity details { sku title } }
    }
    ... on Error { reason errorMessage friendlyMessage }
  }
}`

const updateBasketQuantityMutation = `
mutation BasketPageUpdateBasketItemQuantity($input: UpdateBasketLineQuantityInput!) {
  updateBasketLineQuantity(input: $input) {
    ... on Basket {
      id contentsChanged totalProductCount type
      lines {
        sku id quantity
        details {
          sku title subtitle brand image link category
          price {
            price promoPrice
            pricePerUnit { price quantity unit }
          }
          availability { availability isAvailable label }
        }
      }
    }
    ... on Error { reason errorMessage friendlyHeader friendlyMessage }
  }
}`

const customerListsQuery = `
query GetCustomerProductLists($listPagination: PaginationInput, $listItemPagination: PaginationInput) {
  customerLists: productLists(query: {type: CUSTOMER}, pagination: $listPagination) {
    ...CustomerProductLists
  }
  favouriteLists: productLists(query: {type: FAVORITE}) {
    ...CustomerProductLists
  }
  followingLists { total }
}

fragment CustomerProductLists on ProductListsResponse {
  items {
    id
    productsCount
    title
    type
    userID
    followersCount
    description
    author { name }
    items(pagination: $listItemPagination) {
      product { image }
    }
  }
  total
}`

const listDetailQuery = `
query GetProductList($listId: ID!, $listItemsPagination: PaginationInput, $referenceDate: String!) {
  productListV2(id: $listId) {
    id
    type
    title
    description
    userID
    author { name verified image }
    items(pagination: $listItemsPagination) {
      id
      sku
      orderIndex
      product {
        sku id brand category
        subtitle: packSizeDisplay
        title image link
        availability { availability isAvailable label }
        prices: price(referenceDate: $referenceDate) {
          price promoPrice
          pricePerUnit { price unit }
        }
        promotions { id title tags { text } }
      }
      quantity { amount unit }
    }
    labels
    isFollowedByMe
    followersCount
    isPublic
    productsCount
    webUrl
  }
}`

const ordersOverviewQuery = `
query GetOnlineOrdersAndStoreReceipts($ordersInput: OrdersInput!, $page: Int, $pageSize: Int) {
  storeReceipts: receiptOverview(page: $page, pageSize: $pageSize) {
    totalResults
    pageSize
    currentPage
    receipts {
      transactionId
      purchaseEndOn
      receiptSource
      store { storeId name }
      pointBalance
    }
  }
  onlineOrders: orders(input: $ordersInput) {
    orders {
      orderId
      customerId
      deliveryDate
      slotStartTime
      slotEndTime
      cutoffTime
      fulfilmentType
      status
      branchName
      totalToPayMoneyType { amount currency }
    }
    totalCount
  }
}`

const orderDetailQuery = `
query OrderPagesOrder($orderId: Float!, $mergeItemsWithSameSkuAndPrice: Boolean! = true) {
  order(orderId: $orderId, options: {mergeItemsWithSameSkuAndPrice: $mergeItemsWithSameSkuAndPrice}) {
    orderId
    customerId
    deliveryDate
    fulfilmentType
    paymentMethod
    items {
      lineId: lineNumber
      sku
      quantity
      orderedQuantity
      pickedQuantity
      unit
      linePriceExDiscount { amount currency }
      linePriceIncDiscount { amount currency }
      pricePerUnit {
        price { amount currency }
        unit
      }
      details {
        id sku title subtitle image link category brand
        price {
          price promoPrice
          pricePerUnit { price quantity unit }
        }
        availability { availability isAvailable label }
      }
    }
    totals {
      totalToPay { amount currency }
      totalTax { amount currency }
      itemSubtotal { amount currency }
      itemDiscounts { amount currency }
      shippingCosts { amount currency }
    }
    progress { orderChannel cutoffTime status }
  }
}`

const receiptDetailQuery = `
query GetDigitalReceipt($transactionId: String) {
  receipt(transactionId: $transactionId) {
    receiptImage {
      image
      type
      receiptPoints { earned newBalance oldBalance redeemed }
    }
    store {
      name
      location {
        address { city houseNumber postalCode street }
      }
    }
    purchaseEndOn
    receiptSource
    customerDetails {
      customerId
      loyaltyCard { number }
    }
    transactionId
  }
}`

// GetBasket returns the active basket payload.
func (c *Client) GetBasket(ctx context.Context) (json.RawMessage, error) {
	data, err := c.graphql(ctx, clientNameBasket, activeBasketQuery, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		ActiveBasket struct {
			ErrorMessage string          `json:"errorMessage"`
			Basket       json.RawMessage `json:"basket"`
		} `json:"activeBasket"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed basket payload: %v", domain.ErrCatalogUnavailable, err)
	}
	if payload.ActiveBasket.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrCatalogUnavailable, payload.ActiveBasket.ErrorMessage)
	}
	return payload.ActiveBasket.Basket, nil
}

// basketMutationResult is the shared shape of basket mutation responses.
type basketMutationResult struct {
	Reason          string `json:"reason"`
	ErrorMessage    string `json:"errorMessage"`
	FriendlyMessage string `json:"friendlyMessage"`
}

func (c *Client) basketMutation(ctx context.Context, query, field string, variables interface{}) (json.RawMessage, error) {
	data, err := c.graphql(ctx, clientNameBasket, query, variables)
	if err != nil {
		return nil, err
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed mutation payload: %v", domain.ErrCatalogUnavailable, err)
	}
	result := payload[field]
	var check basketMutationResult
	if err := json.Unmarshal(result, &check); err == nil {
		if check.Reason != "" || check.ErrorMessage != "" {
			msg := check.ErrorMessage
			if msg == "" {
				msg = check.FriendlyMessage
			}
			if msg == "" {
				msg = check.Reason
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogUnavailable, msg)
		}
	}
	return result, nil
}

// AddToBasket adds a product by SKU with the given quantity.
func (c *Client) AddToBasket(ctx context.Context, sku string, quantity float64) (json.RawMessage, error) {
	variables := map[string]interface{}{
		"input": map[string]interface{}{
			"lines": []map[string]interface{}{{"sku": sku, "quantity": quantity}},
			"type":  "ECOMMERCE",
		},
	}
	return c.basketMutation(ctx, addBasketLinesMutation, "addBasketLines", variables)
}

// RemoveFromBasket removes a basket line by its ID.
func (c *Client) RemoveFromBasket(ctx context.Context, lineID string) (json.RawMessage, error) {
	variables := map[string]interface{}{
		"input": map[string]interface{}{
			"ids":  []string{lineID},
			"type": "ECOMMERCE",
		},
	}
	return c.basketMutation(ctx, removeBasketLinesMutation, "removeBasketLines", variables)
}

// UpdateBasketQuantity changes the quantity of a basket line.
func (c *Client) UpdateBasketQuantity(ctx context.Context, lineID string, quantity float64) (json.RawMessage, error) {
	variables := map[string]interface{}{
		"input": map[string]interface{}{
			"id":       lineID,
			"quantity": quantity,
			"type":     "ECOMMERCE",
		},
	}
	return c.basketMutation(ctx, updateBasketQuantityMutation, "updateBasketLineQuantity", variables)
}

// GetLists fetches the customer shopping lists with preview items.
func (c *Client) GetLists(ctx context.Context, listLimit, itemLimit int) (json.RawMessage, error) {
	variables := map[string]interface{}{
		"listPagination":     map[string]int{"offset": 0, "limit": listLimit},
		"listItemPagination": map[string]int{"offset": 0, "limit": itemLimit},
	}
	return c.graphql(ctx, clientNameList, customerListsQuery, variables)
}

// GetList fetches a single shopping list with full product details.
func (c *Client) GetList(ctx context.Context, listID string, itemLimit int) (json.RawMessage, error) {
	variables := map[string]interface{}{
		"listId":              listID,
		"listItemsPagination": map[string]int{"offset": 0, "limit": itemLimit},
		"referenceDate":       time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	data, err := c.graphql(ctx, clientNameList, listDetailQuery, variables)
	if err != nil {
		return nil, err
	}
	var payload struct {
		ProductListV2 json.RawMessage `json:"productListV2"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed list payload: %v", domain.ErrCatalogUnavailable, err)
	}
	return payload.ProductListV2, nil
}

// GetOrders fetches online orders and store receipts history.
func (c *Client) GetOrders(ctx context.Context, ordersLimit, receiptsPage, receiptsPageSize int) (json.RawMessage, error) {
	variables := map[string]interface{}{
		"ordersInput": map[string]interface{}{
			"offset":         0,
			"limit":          ordersLimit,
			"direction":      "DESC",
			"sortBy":         "deliveryDate",
			"statusCategory": "CLOSED",
		},
		"page":     receiptsPage,
		"pageSize": receiptsPageSize,
	}
	return c.graphql(ctx, clientNameOrders, ordersOverviewQuery, variables)
}

// GetOrderDetails fetches one order including all product lines.
func (c *Client) GetOrderDetails(ctx context.Context, orderID int64) (json.RawMessage, error) {
	variables := map[string]interface{}{
		"orderId":                      float64(orderID),
		"mergeItemsWithSameSkuAndPrice": true,
	}
	data, err := c.graphql(ctx, clientNameOrders, orderDetailQuery, variables)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed order payload: %v", domain.ErrCatalogUnavailable, err)
	}
	if len(payload.Order) == 0 || string(payload.Order) == "null" {
		return nil, fmt.Errorf("%w: order %d", domain.ErrProductNotFound, orderID)
	}
	return payload.Order, nil
}

// ReceiptImage is the embedded print rendering of a digital receipt.
type ReceiptImage struct {
	Image         string          `json:"image"`
	Type          string          `json:"type"`
	ReceiptPoints json.RawMessage `json:"receiptPoints"`
}

// ReceiptDetail is a digital receipt as returned by the API, prior to
// parsing the print layout.
type ReceiptDetail struct {
	ReceiptImage    *ReceiptImage   `json:"receiptImage"`
	Store           json.RawMessage `json:"store"`
	PurchaseEndOn   string          `json:"purchaseEndOn"`
	ReceiptSource   string          `json:"receiptSource"`
	CustomerDetails json.RawMessage `json:"customerDetails"`
	TransactionID   string          `json:"transactionId"`
}

// GetReceipt fetches one digital receipt by transaction ID.
func (c *Client) GetReceipt(ctx context.Context, transactionID string) (*ReceiptDetail, error) {
	data, err := c.graphql(ctx, clientNameOrders, receiptDetailQuery, map[string]string{
		"transactionId": transactionID,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Receipt *ReceiptDetail `json:"receipt"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed receipt payload: %v", domain.ErrCatalogUnavailable, err)
	}
	if payload.Receipt == nil {
		return nil, fmt.Errorf("%w: receipt %s", domain.ErrProductNotFound, transactionID)
	}
	return payload.Receipt, nil
}
