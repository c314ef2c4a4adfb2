package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"erpsync/internal/api/handlers"
	"erpsync/internal/config"
	"erpsync/internal/database"
	"erpsync/internal/events"
	"erpsync/internal/idempotency"
	"erpsync/internal/models"
	"erpsync/internal/platformtest"
	"erpsync/internal/services/shopify"
	"erpsync/internal/store"
	"erpsync/internal/syncer"
	"erpsync/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dbSeq int64

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	topics []string
	events []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, event interface{}) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testServer struct {
	server    *Server
	store     *store.Store
	platform  *platformtest.Platform
	publisher *recordingPublisher
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	name := fmt.Sprintf("api_%s_%d", strings.ReplaceAll(t.Name(), "/", "_"), atomic.AddInt64(&dbSeq, 1))
	db, err := database.New("sqlite://file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Env:                "test",
		DefaultShop:        "acme",
		KafkaOutboundTopic: "erp-outbound",
		KafkaSyncTopic:     "erp-sync",
		SyncActor:          "Laravel",
		SyncClaimTTL:       time.Minute,
	}
	if mutate != nil {
		mutate(cfg)
	}

	ts := &testServer{
		store:     store.New(db.DB),
		platform:  platformtest.New(),
		publisher: &recordingPublisher{},
	}
	logger := zap.NewNop()
	deps := Dependencies{
		Store: ts.store,
		Syncer: syncer.NewDispatcher(ts.store,
			syncer.PlatformFunc(func(context.Context, string) (syncer.Platform, error) { return ts.platform, nil }),
			logger, syncer.Options{Actor: cfg.SyncActor, ClaimTTL: cfg.SyncClaimTTL}),
		Platforms: handlers.PlatformsFunc(func(context.Context, string) (handlers.Platform, error) { return ts.platform, nil }),
		Ingestor:  webhook.NewIngestor(ts.store, idempotency.NewMemoryStore(), ts.publisher, cfg.KafkaOutboundTopic, logger),
		Publisher: ts.publisher,
		OAuth:     shopify.NewOAuthService(cfg, logger),
	}
	ts.server = New(cfg, logger, db, deps)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.server.GetRouter().ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (ts *testServer) createInbound(t *testing.T, body map[string]interface{}) uint {
	t.Helper()
	rec, out := ts.do(t, http.MethodPost, "/api/v1/inbound-messages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(out["id"].(float64))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, out := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateInbound_DerivesTargetIDAndWrapsPayload(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()

	productID := ts.createInbound(t, map[string]interface{}{"entityCode": "product", "sku": "SKU-9", "title": "Hat"})
	msg, err := ts.store.GetInbound(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, "SKU-9", msg.TargetID)
	assert.Equal(t, models.DefaultERPCode, msg.ERPCode)
	assert.Equal(t, models.StatusPending, msg.Status)
	assert.Equal(t, "0", msg.Counter)
	assert.Equal(t, "acme.myshopify.com", msg.Shop)

	stored, err := ts.store.GetPayload(ctx, productID)
	require.NoError(t, err)
	var envelope map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(stored.Body, &envelope))
	assert.Equal(t, "Hat", envelope["body"]["title"])

	companyID := ts.createInbound(t, map[string]interface{}{"entityCode": "company", "company_id": 42, "targetId": "ignored"})
	msg, err = ts.store.GetInbound(ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, "42", msg.TargetID)
}

func TestCreateInbound_ShopFromHeader(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, out := ts.do(t, http.MethodPost, "/api/v1/inbound-messages",
		map[string]interface{}{"entityCode": "order", "targetId": "7"},
		"X-Shopify-Shop-Domain", "other.myshopify.com")
	require.Equal(t, http.StatusCreated, rec.Code)

	msg, err := ts.store.GetInbound(context.Background(), uint(out["id"].(float64)))
	require.NoError(t, err)
	assert.Equal(t, "other.myshopify.com", msg.Shop)
}

func TestCreateInbound_RejectsMissingFields(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, out := ts.do(t, http.MethodPost, "/api/v1/inbound-messages", map[string]interface{}{"targetId": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "entityCode", out["field"])

	rec, out = ts.do(t, http.MethodPost, "/api/v1/inbound-messages", map[string]interface{}{"entityCode": "product", "title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "targetId", out["field"])

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/inbound-messages", "[1, 2]")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInbound_Paginates(t *testing.T) {
	ts := newTestServer(t, nil)
	for i := 0; i < 3; i++ {
		ts.createInbound(t, map[string]interface{}{"entityCode": "order", "targetId": fmt.Sprint(i)})
	}

	rec, out := ts.do(t, http.MethodGet, "/api/v1/inbound-messages?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["data"], 2)
	page := out["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, page["total"])
	assert.Equal(t, true, page["hasNext"])
	assert.Equal(t, false, page["hasPrev"])

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/inbound-messages?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/inbound-messages?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInbound_GetStatusDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createInbound(t, map[string]interface{}{"entityCode": "other", "targetId": "x"})
	path := fmt.Sprintf("/api/v1/inbound-messages/%d", id)

	rec, out := ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, out["payload"])

	rec, out = ts.do(t, http.MethodPut, path+"/status", map[string]string{"status": "success"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", out["message"].(map[string]interface{})["status"])

	rec, _ = ts.do(t, http.MethodPut, path+"/status", map[string]string{"status": "processing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSync_ProductSuccess(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.platform.AddProduct("555", "Old")
	id := ts.createInbound(t, map[string]interface{}{"entityCode": "product", "sku": "555", "title": "New"})

	rec, out := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sync?entryId=%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "gid://shopify/Product/555", data["shopifyId"])
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, "1", data["counter"])
}

func TestSync_UpstreamErrorsAreListed(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createInbound(t, map[string]interface{}{"entityCode": "product", "sku": "404", "title": "Ghost"})

	rec, out := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/inbound-messages/%d/sync", id), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []interface{}{"Product does not exist"}, out["errors"])
	assert.Equal(t, "error", out["data"].(map[string]interface{})["status"])

	msg, err := ts.store.GetInbound(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, msg.Status)
}

func TestSync_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/sync?entryId=999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := ts.createInbound(t, map[string]interface{}{"entityCode": "unknown_type", "targetId": "x"})
	rec, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sync?entryId=%d", id), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg, err := ts.store.GetInbound(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, msg.Status)
}

func TestSync_AsyncEnqueues(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createInbound(t, map[string]interface{}{"entityCode": "product", "sku": "1", "title": "x"})

	rec, _ := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sync?entryId=%d&async=true", id), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ts.publisher.events, 1)
	assert.Equal(t, "erp-sync", ts.publisher.topics[0])
	assert.Equal(t, events.SyncRequest{MessageID: id}, ts.publisher.events[0])
	assert.Empty(t, ts.platform.Calls)
}

func signature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhook_ThenPullAndAck(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.ShopifyClientSecret = "shh" })
	body := []byte(`{"id": 999, "title": "Hat"}`)

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/webhooks", body,
		"X-Shopify-Topic", "PRODUCTS_CREATE",
		"X-Shopify-Shop-Domain", "acme.myshopify.com",
		"X-Shopify-Hmac-Sha256", "bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	headers := []string{
		"X-Shopify-Topic", "PRODUCTS_CREATE",
		"X-Shopify-Shop-Domain", "acme.myshopify.com",
		"X-Shopify-Webhook-Id", "wh-1",
		"X-Shopify-Hmac-Sha256", signature(body, "shh"),
	}
	rec, out := ts.do(t, http.MethodPost, "/api/v1/webhooks", body, headers...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ingested", out["outcome"])

	rec, out = ts.do(t, http.MethodPost, "/api/v1/webhooks", body, headers...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", out["outcome"])

	rec, out = ts.do(t, http.MethodGet, "/api/v1/outbound-messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := out["data"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "product", row["entityCode"])
	assert.Equal(t, "999", row["shopifyId"])
	assert.Equal(t, "pending", row["status"])
	assert.Equal(t, "0", row["count"])

	rec, out = ts.do(t, http.MethodPost, "/api/v1/outbound-messages/pull", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pulled := out["data"].([]interface{})
	require.Len(t, pulled, 1)
	assert.Equal(t, "transferred", pulled[0].(map[string]interface{})["status"])

	rec, out = ts.do(t, http.MethodPost, "/api/v1/outbound-messages/pull", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["data"])

	id := uint(row["id"].(float64))
	rec, out = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/outbound-messages/%d/ack", id),
		map[string]string{"erpId": "ERP-1", "status": "success"})
	require.Equal(t, http.StatusOK, rec.Code)
	acked := out["message"].(map[string]interface{})
	assert.Equal(t, "success", acked["status"])
	assert.Equal(t, "ERP-1", acked["erpId"])
	assert.Equal(t, "1", acked["count"])

	rec, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/outbound-messages/%d/ack", id),
		map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_MissingHeaders(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, _ := ts.do(t, http.MethodPost, "/api/v1/webhooks", `{"id": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistration(t *testing.T) {
	ts := newTestServer(t, nil)
	form := map[string]string{
		"shop":         "acme",
		"userEmail":    "buyer@acme.com",
		"firstName":    "Ada",
		"companyName":  "Acme Traders",
		"companyEmail": "accounts@acme.com",
		"address1":     "12 MG Road",
		"city":         "Pune",
		"zip_code":     "411001",
	}

	rec, out := ts.do(t, http.MethodPost, "/api/v1/registrations", form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["companyId"])
	assert.NotEmpty(t, out["customerId"])

	delete(form, "companyEmail")
	rec, out = ts.do(t, http.MethodPost, "/api/v1/registrations", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "companyEmail", out["field"])
}

func TestUpdateIdentity(t *testing.T) {
	ts := newTestServer(t, nil)
	c := ts.platform.AddCompany("Acme", "old@acme.com")
	path := "/api/v1/companies/" + shopify.LegacyID(c.ID) + "/identity"

	rec, _ := ts.do(t, http.MethodPut, path, map[string]string{"companyEmail": "new@acme.com", "targetCompanyId": "12"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "new@acme.com", ts.platform.Companies[c.ID].Email)
	assert.Equal(t, "12", ts.platform.Companies[c.ID].TargetCompanyID)

	rec, out := ts.do(t, http.MethodPut, path, map[string]string{"targetCompanyId": "-3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "targetCompanyId", out["field"])

	rec, _ = ts.do(t, http.MethodPut, "/api/v1/companies/987654/identity", map[string]string{"companyEmail": "x@acme.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_ProtectsERPRoutes(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.JWTSecret = "jwt-secret" })

	rec, _ := ts.do(t, http.MethodGet, "/api/v1/inbound-messages", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "erp",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	rec, out := ts.do(t, http.MethodGet, "/api/v1/inbound-messages", nil, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token expired", out["error"])

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "erp",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	rec, _ = ts.do(t, http.MethodGet, "/api/v1/inbound-messages", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Shopify-facing routes authenticate differently.
	rec, _ = ts.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShopifyInstall(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.ShopifyClientID = "client-1" })

	rec, out := ts.do(t, http.MethodPost, "/api/v1/shopify/install",
		map[string]string{"shop_domain": "acme", "redirect_uri": "https://app.example.com/callback"})
	require.Equal(t, http.StatusOK, rec.Code)
	authURL := out["auth_url"].(string)
	assert.True(t, strings.HasPrefix(authURL, "https://acme.myshopify.com/admin/oauth/authorize?"), authURL)
	assert.Contains(t, authURL, "client_id=client-1")
	assert.NotEmpty(t, out["state"])

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/shopify/callback?code=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
