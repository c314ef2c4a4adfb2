package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"erpsync/internal/apperr"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultAPIVersion = "2024-10"

type Client struct {
	shopDomain  string
	accessToken string
	endpoint    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

type ClientOption func(*Client)

// WithEndpoint overrides the GraphQL endpoint URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(perSecond * 2)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(shopDomain, accessToken, apiVersion string, logger *zap.Logger, opts ...ClientOption) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	domain := ShopDomain(shopDomain)
	c := &Client{
		shopDomain:  domain,
		accessToken: accessToken,
		endpoint:    fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, apiVersion),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		logger:  logger.With(zap.String("shop", domain)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShopDomain returns the canonical myshopify domain for a shop name or domain.
func ShopDomain(shop string) string {
	shop = strings.TrimSpace(strings.ToLower(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimSuffix(shop, "/")
	if shop != "" && !strings.Contains(shop, ".") {
		shop += ".myshopify.com"
	}
	return shop
}

func (c *Client) Shop() string {
	return c.shopDomain
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do posts one GraphQL operation and decodes its data into out. Network
// failures and non-2xx responses become TransportError; top-level GraphQL
// errors become UpstreamValidationError, except throttling, which is a
// TransportError with status 429.
func (c *Client) do(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &apperr.TransportError{Operation: operation, Err: err}
	}

	jsonData, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Add authentication header
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperr.TransportError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("shopify graphql call",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apperr.TransportError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API request failed: %s", strings.TrimSpace(string(body))),
		}
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return &apperr.TransportError{Operation: operation, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(gqlResp.Errors) > 0 {
		upstream := &apperr.UpstreamValidationError{Operation: operation}
		for _, e := range gqlResp.Errors {
			code, _ := e.Extensions["code"].(string)
			if code == "THROTTLED" {
				return &apperr.TransportError{Operation: operation, StatusCode: http.StatusTooManyRequests, Err: fmt.Errorf("%s", e.Message)}
			}
			upstream.Errors = append(upstream.Errors, apperr.UserError{Message: e.Message, Code: code})
		}
		return upstream
	}

	if out == nil || len(gqlResp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", operation, err)
	}
	return nil
}

// userError mirrors the userErrors selection of every mutation payload.
type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

func checkUserErrors(operation string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	out := &apperr.UpstreamValidationError{Operation: operation}
	for _, e := range errs {
		out.Errors = append(out.Errors, apperr.UserError{
			Field:   strings.Join(e.Field, "."),
			Message: e.Message,
			Code:    e.Code,
		})
	}
	return out
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

func missingObject(operation, field string) error {
	return fmt.Errorf("%s returned no %s", operation, field)
}
