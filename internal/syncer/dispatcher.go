// Package syncer routes inbound messages to the entity handler that applies
// them on the platform, and records the outcome on the message.
package syncer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"erpsync/internal/apperr"
	"erpsync/internal/company"
	"erpsync/internal/models"
	"erpsync/internal/payload"
	"erpsync/internal/services/shopify"

	"go.uber.org/zap"
)

// Store is the message store the dispatcher reads and claims messages in.
type Store interface {
	GetInbound(ctx context.Context, id uint) (*models.InboundMessage, error)
	GetPayload(ctx context.Context, messageID uint) (*models.MessagePayload, error)
	ClaimInbound(ctx context.Context, id uint, staleBefore time.Time) (bool, error)
	FinishInbound(ctx context.Context, msg *models.InboundMessage) error
}

// Platform is everything the entity handlers call on the platform.
type Platform interface {
	company.Platform
	UpdateProduct(ctx context.Context, input shopify.ProductUpdateInput) (*shopify.Product, error)
	CreateAutomaticDiscount(ctx context.Context, input shopify.AutomaticDiscountInput) (*shopify.DiscountNode, error)
}

// PlatformProvider returns the platform scoped to one shop.
type PlatformProvider interface {
	ForShop(ctx context.Context, shop string) (Platform, error)
}

// PlatformFunc adapts a function to PlatformProvider.
type PlatformFunc func(ctx context.Context, shop string) (Platform, error)

func (f PlatformFunc) ForShop(ctx context.Context, shop string) (Platform, error) {
	return f(ctx, shop)
}

// FromFactory serves platforms from a shopify client factory.
func FromFactory(f *shopify.Factory) PlatformProvider {
	return PlatformFunc(func(ctx context.Context, shop string) (Platform, error) {
		c, err := f.ForShop(ctx, shop)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Handler applies one entity type on the platform.
type Handler interface {
	Sync(ctx context.Context, p Platform, msg *models.InboundMessage, body payload.Body) (*Result, error)
}

// Result is what a handler established on the platform.
type Result struct {
	PlatformID string `json:"platformId"`

	Product  *shopify.Product      `json:"product,omitempty"`
	Discount *shopify.DiscountNode `json:"discount,omitempty"`

	Company         *shopify.Company       `json:"company,omitempty"`
	CompanyOutcome  company.Outcome        `json:"companyOutcome,omitempty"`
	Location        *shopify.Location      `json:"location,omitempty"`
	LocationOutcome company.Outcome        `json:"locationOutcome,omitempty"`
	RoleAssigned    bool                   `json:"roleAssigned,omitempty"`
	Actions         []company.ActionResult `json:"-"`
}

// SyncResult is the state of a message after one dispatch.
type SyncResult struct {
	MessageID  uint                 `json:"messageId"`
	EntityCode models.EntityCode    `json:"entityCode"`
	Status     models.MessageStatus `json:"status"`
	Counter    string               `json:"counter"`
	PlatformID string               `json:"shopifyId,omitempty"`
	Result     *Result              `json:"result,omitempty"`
}

type Options struct {
	// Actor is written to updatedBy on every completed attempt.
	Actor string
	// RetryLimit refuses messages in error whose counter reached it; 0
	// disables the limit.
	RetryLimit int
	// ClaimTTL is how long a processing claim blocks other dispatches.
	ClaimTTL time.Duration
}

type Dispatcher struct {
	store     Store
	platforms PlatformProvider
	handlers  map[models.EntityCode]Handler
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewDispatcher builds a dispatcher with the product, price level and
// company handlers registered.
func NewDispatcher(store Store, platforms PlatformProvider, logger *zap.Logger, opts Options) *Dispatcher {
	if opts.Actor == "" {
		opts.Actor = "Laravel"
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 5 * time.Minute
	}
	d := &Dispatcher{
		store:     store,
		platforms: platforms,
		handlers:  make(map[models.EntityCode]Handler),
		opts:      opts,
		logger:    logger.With(zap.String("component", "dispatcher")),
		now:       time.Now,
	}
	d.Register(models.EntityProduct, &ProductHandler{})
	d.Register(models.EntityPriceLevel, &PriceLevelHandler{now: d.now})
	d.Register(models.EntityCompany, NewCompanyHandler(logger))
	return d
}

// Register installs h for code, replacing any previous handler.
func (d *Dispatcher) Register(code models.EntityCode, h Handler) {
	d.handlers[code] = h
}

// Sync dispatches message id to its handler. Lookup, payload and routing
// failures are returned before the message is touched. Once claimed, the
// message is written exactly once with the outcome, even if ctx is
// cancelled meanwhile.
func (d *Dispatcher) Sync(ctx context.Context, id uint) (*SyncResult, error) {
	msg, err := d.store.GetInbound(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := d.store.GetPayload(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := payload.Decode(stored.Body)
	if err != nil {
		return nil, &apperr.InvalidPayloadError{MessageID: id, Err: err}
	}
	handler, ok := d.handlers[msg.EntityCode]
	if !ok {
		return nil, &apperr.UnknownEntityCodeError{Code: string(msg.EntityCode)}
	}
	body, err := payload.Parse(msg.EntityCode, fields)
	if err != nil {
		return nil, &apperr.InvalidPayloadError{MessageID: id, Err: err}
	}

	if d.opts.RetryLimit > 0 && msg.Status == models.StatusError && msg.Attempts() >= d.opts.RetryLimit {
		return nil, &apperr.ConflictError{
			MessageID: id,
			Reason:    fmt.Sprintf("retry limit of %d attempts reached", d.opts.RetryLimit),
		}
	}

	platform, err := d.platforms.ForShop(ctx, msg.Shop)
	if err != nil {
		return nil, err
	}

	claimed, err := d.store.ClaimInbound(ctx, id, d.now().Add(-d.opts.ClaimTTL))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, &apperr.ConflictError{MessageID: id, Reason: "message is already being synced or is not pending"}
	}

	log := d.logger.With(
		zap.Uint("message_id", id),
		zap.String("entity_code", string(msg.EntityCode)),
		zap.String("shop", msg.Shop))
	log.Info("sync started", zap.Int("attempt", msg.Attempts()+1))

	result, syncErr := handler.Sync(ctx, platform, msg, body)

	actor := d.opts.Actor
	msg.Counter = strconv.Itoa(msg.Attempts() + 1)
	msg.UpdatedBy = &actor
	if syncErr == nil {
		msg.Status = models.StatusSuccess
		if result != nil && result.PlatformID != "" {
			platformID := result.PlatformID
			msg.PlatformID = &platformID
		}
	} else {
		msg.Status = models.StatusError
	}

	if err := d.store.FinishInbound(context.WithoutCancel(ctx), msg); err != nil {
		log.Error("failed to record sync outcome", zap.Error(err), zap.NamedError("sync_error", syncErr))
		return nil, err
	}

	out := &SyncResult{
		MessageID:  msg.ID,
		EntityCode: msg.EntityCode,
		Status:     msg.Status,
		Counter:    msg.Counter,
		Result:     result,
	}
	if msg.PlatformID != nil {
		out.PlatformID = *msg.PlatformID
	}

	if syncErr != nil {
		log.Warn("sync failed", zap.Error(syncErr), zap.String("counter", msg.Counter))
		return out, syncErr
	}
	log.Info("sync succeeded", zap.String("platform_id", out.PlatformID), zap.String("counter", msg.Counter))
	return out, nil
}
