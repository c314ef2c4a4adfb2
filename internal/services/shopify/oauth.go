package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"erpsync/internal/config"

	"go.uber.org/zap"
)

// Scopes requested on install: B2B companies, customers, catalog and orders.
const Scopes = "read_companies,write_companies," +
	"read_customers,write_customers," +
	"read_products,write_products," +
	"read_discounts,write_discounts," +
	"read_orders"

type OAuthService struct {
	config     *config.Config
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    func(shop string) string
}

func NewOAuthService(cfg *config.Config, logger *zap.Logger) *OAuthService {
	return &OAuthService{
		config:     cfg,
		logger:     logger.With(zap.String("component", "shopify_oauth")),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL: func(shop string) string {
			return "https://" + ShopDomain(shop)
		},
	}
}

// GenerateAuthURL creates the Shopify OAuth authorization URL
func (s *OAuthService) GenerateAuthURL(shopDomain string, redirectURI string) (string, string, error) {
	// Generate a secure state parameter
	state, err := s.generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", s.config.ShopifyClientID)
	params.Set("scope", Scopes)
	params.Set("redirect_uri", redirectURI)
	params.Set("state", state)

	authURL := fmt.Sprintf("%s/admin/oauth/authorize?%s", s.baseURL(shopDomain), params.Encode())
	return authURL, state, nil
}

// ExchangeCodeForToken exchanges the authorization code for an access token
func (s *OAuthService) ExchangeCodeForToken(ctx context.Context, shopDomain, code string) (*TokenResponse, error) {
	tokenURL := s.baseURL(shopDomain) + "/admin/oauth/access_token"

	data := url.Values{}
	data.Set("client_id", s.config.ShopifyClientID)
	data.Set("client_secret", s.config.ShopifyClientSecret)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	return &tokenResp, nil
}

// ValidateWebhook checks the base64 HMAC-SHA256 signature Shopify sends in
// X-Shopify-Hmac-Sha256.
func ValidateWebhook(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// generateState generates a cryptographically secure random state
func (s *OAuthService) generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}
