package shopify

import (
	"context"
	"time"
)

const productUpdateMutation = `mutation productUpdate($input: ProductInput!) {
  productUpdate(input: $input) {
    product { id title }
    userErrors { field message }
  }
}`

// UpdateProduct changes a product's title.
func (c *Client) UpdateProduct(ctx context.Context, input ProductUpdateInput) (*Product, error) {
	var out struct {
		ProductUpdate struct {
			Product    *Product    `json:"product"`
			UserErrors []userError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	vars := map[string]interface{}{"input": input}
	if err := c.do(ctx, "productUpdate", productUpdateMutation, vars, &out); err != nil {
		return nil, err
	}
	if err := checkUserErrors("productUpdate", out.ProductUpdate.UserErrors); err != nil {
		return nil, err
	}
	if out.ProductUpdate.Product == nil {
		return nil, missingObject("productUpdate", "product")
	}
	return out.ProductUpdate.Product, nil
}

const discountAutomaticBasicCreateMutation = `mutation discountAutomaticBasicCreate($automaticBasicDiscount: DiscountAutomaticBasicInput!) {
  discountAutomaticBasicCreate(automaticBasicDiscount: $automaticBasicDiscount) {
    automaticDiscountNode {
      id
      automaticDiscount {
        ... on DiscountAutomaticBasic { title startsAt endsAt }
      }
    }
    userErrors { field message code }
  }
}`

// CreateAutomaticDiscount creates a percentage discount on all items.
func (c *Client) CreateAutomaticDiscount(ctx context.Context, input AutomaticDiscountInput) (*DiscountNode, error) {
	percentage, _ := input.Percentage.Float64()
	discount := map[string]interface{}{
		"title":    input.Title,
		"startsAt": input.StartsAt.UTC().Format(time.RFC3339),
		"customerGets": map[string]interface{}{
			"value": map[string]interface{}{"percentage": percentage},
			"items": map[string]interface{}{"all": true},
		},
	}
	if input.EndsAt != nil {
		discount["endsAt"] = input.EndsAt.UTC().Format(time.RFC3339)
	}

	var out struct {
		DiscountAutomaticBasicCreate struct {
			AutomaticDiscountNode *struct {
				ID                string       `json:"id"`
				AutomaticDiscount DiscountNode `json:"automaticDiscount"`
			} `json:"automaticDiscountNode"`
			UserErrors []userError `json:"userErrors"`
		} `json:"discountAutomaticBasicCreate"`
	}
	vars := map[string]interface{}{"automaticBasicDiscount": discount}
	if err := c.do(ctx, "discountAutomaticBasicCreate", discountAutomaticBasicCreateMutation, vars, &out); err != nil {
		return nil, err
	}
	payload := out.DiscountAutomaticBasicCreate
	if err := checkUserErrors("discountAutomaticBasicCreate", payload.UserErrors); err != nil {
		return nil, err
	}
	if payload.AutomaticDiscountNode == nil {
		return nil, missingObject("discountAutomaticBasicCreate", "automaticDiscountNode")
	}
	node := payload.AutomaticDiscountNode.AutomaticDiscount
	node.ID = payload.AutomaticDiscountNode.ID
	return &node, nil
}
