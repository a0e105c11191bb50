package jumbo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jumboapi/backend/internal/domain"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/144.0.0.0 Safari/537.36 Edg/144.0.0.0"

// Apollo client names the web frontend sends per feature area; the API is
// picky about them.
const (
	clientNameBasket = "JUMBO_WEB-basket"
	clientNameList   = "JUMBO_WEB-list"
	clientNameOrders = "JUMBO_WEB-orders"
)

// Authenticator exchanges account credentials for session cookies. The
// actual exchange (a scripted browser login) lives outside this module.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (map[string]string, error)
}

// Client talks to the retailer's private GraphQL API and website using
// captured session cookies.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	graphqlURL  string
	session     *Session
	auth        Authenticator
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a catalog client. baseURL is the website root
// (https://www.jumbo.com); the GraphQL endpoint hangs off it.
func NewClient(baseURL string, session *Session, auth Authenticator) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		graphqlURL: strings.TrimRight(baseURL, "/") + "/api/graphql",
		session:    session,
		auth:       auth,
		// Stay well under the website's bot thresholds
		rateLimiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// SetDebug toggles request/response logging.
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// IsAuthenticated reports whether the required session cookies are held.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// AuthInfo returns the detailed session status.
func (c *Client) AuthInfo() AuthInfo {
	return c.session.Info()
}

// Login runs the credential->cookie exchange and persists the captured
// session. Returns ErrNotAuthenticated when no authenticator is wired.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c.auth == nil {
		return fmt.Errorf("%w: no login backend configured", domain.ErrNotAuthenticated)
	}
	cookies, err := c.auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := c.session.Replace(cookies); err != nil {
		return err
	}
	log.Printf("[JUMBO] Login captured %d cookies", len(cookies))
	return nil
}

type graphqlRequest struct {
	Query         string      `json:"query"`
	Variables     interface{} `json:"variables,omitempty"`
	OperationName string      `json:"operationName,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// graphql executes a GraphQL operation and returns the raw data payload.
func (c *Client) graphql(ctx context.Context, clientName, query string, variables interface{}) (json.RawMessage, error) {
	if !c.session.IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("apollographql-client-name", clientName)
	req.Header.Set("apollographql-client-version", "master-v29.2.0-web")
	req.Header.Set("x-source", clientName)
	c.session.Attach(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrCatalogUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		if c.debug {
			log.Printf("[JUMBO] GraphQL HTTP %d: %s", resp.StatusCode, truncate(string(raw), 300))
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrCatalogUnavailable, resp.StatusCode)
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrCatalogUnavailable, err)
	}
	if len(parsed.Errors) > 0 {
		msg := parsed.Errors[0].Message
		if isAuthError(msg) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, msg)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrCatalogUnavailable, msg)
	}
	return parsed.Data, nil
}

func isAuthError(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "not authenticated") ||
		strings.Contains(lower, "invalid token")
}

// fetchHTML issues a GET against the website (search pages) with the
// browser-like headers the site expects.
func (c *Client) fetchHTML(ctx context.Context, path string, params map[string]string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9")
	c.session.Attach(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrCatalogUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", domain.ErrCatalogUnavailable, err)
	}
	return string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
