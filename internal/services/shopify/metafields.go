package shopify

import (
	"context"
	"errors"
	"regexp"

	"erpsync/internal/apperr"
)

const metafieldsSetMutation = `mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id namespace key value type }
    userErrors { field message code }
  }
}`

func (c *Client) SetMetafields(ctx context.Context, metafields []MetafieldInput) ([]Metafield, error) {
	var out struct {
		MetafieldsSet struct {
			Metafields []Metafield  `json:"metafields"`
			UserErrors []userError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	vars := map[string]interface{}{"metafields": metafields}
	if err := c.do(ctx, "metafieldsSet", metafieldsSetMutation, vars, &out); err != nil {
		return nil, err
	}
	if err := checkUserErrors("metafieldsSet", out.MetafieldsSet.UserErrors); err != nil {
		return nil, err
	}
	return out.MetafieldsSet.Metafields, nil
}

// CompanyEmailMetafield is the identity metafield carrying a company email.
func CompanyEmailMetafield(companyID, email string) MetafieldInput {
	return MetafieldInput{
		OwnerID:   companyID,
		Namespace: MetafieldNamespace,
		Key:       CompanyEmailKey,
		Value:     email,
		Type:      MetafieldTypeSingleLine,
	}
}

// TargetCompanyIDMetafield points a company back at its ERP id.
func TargetCompanyIDMetafield(companyID, targetID string) MetafieldInput {
	return MetafieldInput{
		OwnerID:   companyID,
		Namespace: MetafieldNamespace,
		Key:       TargetCompanyIDKey,
		Value:     targetID,
		Type:      MetafieldTypeIntegerType,
	}
}

var missingMutationPattern = regexp.MustCompile(`companyLocationTaxSettingsUpdate.*doesn't exist on type 'Mutation'`)

// IsTaxSettingsUnsupported reports whether err says the shop's API has no
// location tax settings mutation, as on plans without B2B.
func IsTaxSettingsUnsupported(err error) bool {
	var upstream *apperr.UpstreamValidationError
	if !errors.As(err, &upstream) {
		return false
	}
	for _, msg := range upstream.Messages() {
		if missingMutationPattern.MatchString(msg) {
			return true
		}
	}
	return false
}

var duplicatePattern = regexp.MustCompile(`(?i)unique|duplicate|already exists`)

// IsDuplicateValue reports whether err is a uniqueness violation on a
// metafield value.
func IsDuplicateValue(err error) bool {
	var upstream *apperr.UpstreamValidationError
	if !errors.As(err, &upstream) {
		return false
	}
	for _, msg := range upstream.Messages() {
		if duplicatePattern.MatchString(msg) {
			return true
		}
	}
	return false
}
