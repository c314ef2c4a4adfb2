// Package webhook turns platform webhook deliveries into outbound messages
// for the ERP to pull.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"erpsync/internal/events"
	"erpsync/internal/idempotency"
	"erpsync/internal/models"
	"erpsync/internal/services/shopify"

	"go.uber.org/zap"
)

// UpdatedBy tags every outbound row created from a webhook.
const UpdatedBy = "Shopify Admin"

// erpCodeNonProduct is the ERP tag for non-product entities.
const erpCodeNonProduct = "LAR"

// Store is where ingested events land.
type Store interface {
	CreateOutbound(ctx context.Context, msg *models.OutboundMessage) error
	DeleteSessions(ctx context.Context, shop string) (int64, error)
}

// Delivery is one authenticated webhook request.
type Delivery struct {
	Topic     string
	Shop      string
	WebhookID string
	Body      []byte
}

type Outcome string

const (
	Ingested    Outcome = "ingested"
	Duplicate   Outcome = "duplicate"
	Ignored     Outcome = "ignored"
	Uninstalled Outcome = "uninstalled"
)

type Result struct {
	Outcome Outcome
	Message *models.OutboundMessage
	// SessionsRemoved is set for app/uninstalled.
	SessionsRemoved int64
	Reason          string
}

type route struct {
	entity     models.EntityCode
	updateType string
}

var routes = map[string]route{
	"products/create":  {models.EntityProduct, "create"},
	"products/update":  {models.EntityProduct, "update"},
	"orders/updated":   {models.EntityOrder, "update"},
	"companies/create": {models.EntityCompany, "create"},
	"customers/create": {models.EntityCustomer, "create"},
	"customers/update": {models.EntityCustomer, "update"},
}

// NormalizeTopic accepts REST ("products/create") and GraphQL
// ("PRODUCTS_CREATE") topic names.
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	if !strings.Contains(t, "/") {
		t = strings.Replace(t, "_", "/", 1)
	}
	return t
}

type Ingestor struct {
	store     Store
	seen      idempotency.Store
	publisher events.Publisher
	topic     string
	logger    *zap.Logger
}

// NewIngestor publishes every created row to outboundTopic.
func NewIngestor(store Store, seen idempotency.Store, publisher events.Publisher, outboundTopic string, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		store:     store,
		seen:      seen,
		publisher: publisher,
		topic:     outboundTopic,
		logger:    logger.With(zap.String("component", "webhook_ingestor")),
	}
}

// Ingest records d. Every supported event yields exactly one outbound row;
// a redelivery with a known webhook id yields none.
func (i *Ingestor) Ingest(ctx context.Context, d Delivery) (*Result, error) {
	topic := NormalizeTopic(d.Topic)
	shop := shopify.ShopDomain(d.Shop)
	log := i.logger.With(zap.String("topic", topic), zap.String("shop", shop), zap.String("webhook_id", d.WebhookID))

	if topic == "app/uninstalled" {
		n, err := i.store.DeleteSessions(ctx, shop)
		if err != nil {
			return nil, err
		}
		log.Info("app uninstalled; sessions removed", zap.Int64("sessions", n))
		return &Result{Outcome: Uninstalled, SessionsRemoved: n}, nil
	}

	r, ok := routes[topic]
	if !ok {
		log.Debug("unhandled webhook topic")
		return &Result{Outcome: Ignored, Reason: "topic not processed"}, nil
	}

	var body shopify.WebhookPayload
	if err := json.Unmarshal(d.Body, &body); err != nil {
		log.Warn("webhook body is not valid JSON", zap.Error(err))
		return &Result{Outcome: Ignored, Reason: "invalid payload"}, nil
	}
	msg := buildMessage(r, shop, body)
	if msg.PlatformID == "" {
		log.Warn("webhook payload has no id; nothing recorded")
		return &Result{Outcome: Ignored, Reason: "missing id"}, nil
	}

	key := ""
	if d.WebhookID != "" {
		key = shop + ":" + d.WebhookID
		fresh, err := i.seen.MarkProcessed(ctx, key, idempotency.DefaultTTL)
		if err != nil {
			return nil, err
		}
		if !fresh {
			log.Info("duplicate webhook delivery ignored")
			return &Result{Outcome: Duplicate}, nil
		}
	}

	if err := i.store.CreateOutbound(ctx, msg); err != nil {
		if key != "" {
			if ferr := i.seen.Forget(ctx, key); ferr != nil {
				log.Error("failed to release webhook id", zap.Error(ferr))
			}
		}
		return nil, err
	}
	log.Info("outbound message recorded",
		zap.Uint("outbound_id", msg.ID),
		zap.String("entity_code", string(msg.EntityCode)),
		zap.String("platform_id", msg.PlatformID))

	if err := i.publisher.Publish(ctx, i.topic, shop, events.NewOutboundCreated(msg)); err != nil {
		log.Warn("outbound event not published", zap.Uint("outbound_id", msg.ID), zap.Error(err))
	}
	return &Result{Outcome: Ingested, Message: msg}, nil
}

func buildMessage(r route, shop string, body shopify.WebhookPayload) *models.OutboundMessage {
	updatedBy := UpdatedBy
	updateType := r.updateType
	msg := &models.OutboundMessage{
		Shop:       shop,
		EntityCode: r.entity,
		UpdateType: &updateType,
		Status:     models.StatusPending,
		ERPCode:    erpCodeNonProduct,
		Count:      "0",
		UpdatedBy:  &updatedBy,
	}

	if body.ID != 0 {
		msg.PlatformID = strconv.FormatInt(body.ID, 10)
	}

	switch r.entity {
	case models.EntityProduct:
		msg.ERPCode = models.DefaultERPCode
		if len(body.Variants) > 0 {
			v := body.Variants[0]
			if v.ID != 0 {
				msg.VariantID = models.StringPtr(fmt.Sprint(v.ID))
			}
			msg.VariantTitle = models.StringPtr(v.Title)
		}
	case models.EntityCompany:
		if body.AdminGraphQLAPIID != "" {
			msg.PlatformID = shopify.LegacyID(body.AdminGraphQLAPIID)
		}
	}
	return msg
}
