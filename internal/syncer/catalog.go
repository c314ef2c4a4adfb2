package syncer

import (
	"context"
	"fmt"
	"time"

	"erpsync/internal/models"
	"erpsync/internal/payload"
	"erpsync/internal/services/shopify"
)

// ProductHandler renames the product whose numeric id is the message SKU.
type ProductHandler struct{}

func (h *ProductHandler) Sync(ctx context.Context, p Platform, msg *models.InboundMessage, body payload.Body) (*Result, error) {
	b, ok := body.(payload.ProductBody)
	if !ok {
		return nil, fmt.Errorf("product handler got %T", body)
	}
	product, err := p.UpdateProduct(ctx, shopify.ProductUpdateInput{
		ID:    shopify.GID("Product", b.SKU),
		Title: b.Title,
	})
	if err != nil {
		return nil, err
	}
	return &Result{PlatformID: product.ID, Product: product}, nil
}

// PriceLevelHandler turns an ERP price level into a store-wide automatic
// percentage discount.
type PriceLevelHandler struct {
	now func() time.Time
}

func (h *PriceLevelHandler) Sync(ctx context.Context, p Platform, msg *models.InboundMessage, body payload.Body) (*Result, error) {
	b, ok := body.(payload.PriceLevelBody)
	if !ok {
		return nil, fmt.Errorf("price_level handler got %T", body)
	}

	title := b.Title
	if title == "" {
		title = fmt.Sprintf("Price level %s - %s%% off", msg.TargetID, b.DiscountPercentage.String())
	}
	startsAt := h.clock()
	if b.StartsAt != nil {
		startsAt = *b.StartsAt
	}

	discount, err := p.CreateAutomaticDiscount(ctx, shopify.AutomaticDiscountInput{
		Title:      title,
		StartsAt:   startsAt,
		EndsAt:     b.EndsAt,
		Percentage: b.Fraction(),
	})
	if err != nil {
		return nil, err
	}
	return &Result{PlatformID: discount.ID, Discount: discount}, nil
}

func (h *PriceLevelHandler) clock() time.Time {
	if h.now == nil {
		return time.Now()
	}
	return h.now()
}
