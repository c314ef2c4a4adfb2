package company

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"erpsync/internal/apperr"
	"erpsync/internal/services/shopify"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// IdentityPlatform is what the identity editor calls.
type IdentityPlatform interface {
	GetCompany(ctx context.Context, id string) (*shopify.Company, error)
	SetMetafields(ctx context.Context, metafields []shopify.MetafieldInput) ([]shopify.Metafield, error)
}

// IdentityUpdate sets either identity metafield; nil leaves it untouched.
type IdentityUpdate struct {
	CompanyEmail    *string `json:"companyEmail"`
	TargetCompanyID *string `json:"targetCompanyId"`
}

const (
	duplicateEmailMessage    = "This email address is already in use by another company. Please use a unique email address."
	duplicateTargetIDMessage = "This target company ID is already in use by another company. Please use a unique target company ID."
)

// IdentityEditor lets an operator correct the identity metafields the
// resolver matches on.
type IdentityEditor struct {
	validate *validator.Validate
	logger   *zap.Logger
}

func NewIdentityEditor(logger *zap.Logger) *IdentityEditor {
	return &IdentityEditor{
		validate: validator.New(),
		logger:   logger.With(zap.String("component", "identity_editor")),
	}
}

func (e *IdentityEditor) Update(ctx context.Context, p IdentityPlatform, companyID string, in IdentityUpdate) (*shopify.Company, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return nil, apperr.Validation("companyId", "is required")
	}
	id := shopify.GID("Company", companyID)
	if in.CompanyEmail == nil && in.TargetCompanyID == nil {
		return nil, apperr.Validation("", "companyEmail or targetCompanyId is required")
	}

	var metafields []shopify.MetafieldInput
	duplicateMessage := duplicateEmailMessage
	if in.CompanyEmail != nil {
		email := strings.TrimSpace(*in.CompanyEmail)
		if err := e.validate.Var(email, "required,email"); err != nil {
			return nil, apperr.Validation("companyEmail", "must be a valid email address")
		}
		metafields = append(metafields, shopify.CompanyEmailMetafield(id, email))
	}
	if in.TargetCompanyID != nil {
		target := strings.TrimSpace(*in.TargetCompanyID)
		if _, err := strconv.ParseUint(target, 10, 63); err != nil {
			return nil, apperr.Validation("targetCompanyId", "must be a non-negative integer")
		}
		metafields = append(metafields, shopify.TargetCompanyIDMetafield(id, target))
		if in.CompanyEmail == nil {
			duplicateMessage = duplicateTargetIDMessage
		}
	}

	existing, err := p.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound("company", companyID)
	}

	if _, err := p.SetMetafields(ctx, metafields); err != nil {
		if shopify.IsDuplicateValue(err) {
			e.logger.Warn("identity metafield value already taken", zap.String("company_id", id), zap.Error(err))
			return nil, apperr.Validation(metafields[0].Key, duplicateMessage)
		}
		return nil, fmt.Errorf("set identity metafields on %s: %w", id, err)
	}

	for _, m := range metafields {
		switch m.Key {
		case shopify.CompanyEmailKey:
			existing.Email = m.Value
		case shopify.TargetCompanyIDKey:
			existing.TargetCompanyID = m.Value
		}
	}
	e.logger.Info("identity metafields updated", zap.String("company_id", id), zap.Int("fields", len(metafields)))
	return existing, nil
}
