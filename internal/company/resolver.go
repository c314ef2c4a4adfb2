package company

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"erpsync/internal/services/shopify"

	"go.uber.org/zap"
)

// Outcome tags the result of a find-or-create step.
type Outcome string

const (
	Matched Outcome = "matched"
	Created Outcome = "created"
	Failed  Outcome = "failed"
)

// ResolveRequest carries the identity signals of one company.
type ResolveRequest struct {
	Email      string
	Name       string
	Note       string
	ExternalID string
	// TargetID is the ERP company id written to custom.targetCompanyId.
	TargetID string
	// LegacyID addresses the company directly when no email is given.
	LegacyID string
	// Contact is created together with a new company.
	Contact *shopify.ContactInput
	// UpdateExisting sends name/note/externalId to a company found by email.
	UpdateExisting bool
	// StrictIdentity makes identity metafield failures fail the resolution.
	StrictIdentity bool
}

type Resolution struct {
	Company *shopify.Company
	Outcome Outcome
	// Legacy is set when the company was addressed by id without an email
	// lookup; such resolutions cannot detect duplicates.
	Legacy bool
}

type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.With(zap.String("component", "company_resolver"))}
}

// Resolve finds the company carrying req.Email in its custom.companyEmail
// metafield, or creates one and stamps its identity metafields. Without an
// email it falls back to LegacyID, and without either it creates a company.
func (r *Resolver) Resolve(ctx context.Context, p Platform, req ResolveRequest) (*Resolution, error) {
	email := strings.TrimSpace(req.Email)
	input := shopify.CompanyInput{Name: req.Name, Note: req.Note, ExternalID: req.ExternalID}

	if email == "" && req.LegacyID != "" {
		id := shopify.GID("Company", req.LegacyID)
		company, err := p.UpdateCompany(ctx, id, input)
		if err != nil {
			return nil, fmt.Errorf("update company %s: %w", id, err)
		}
		r.logger.Info("company addressed by legacy id",
			zap.String("company_id", company.ID),
			zap.String("legacy_id", req.LegacyID))
		return &Resolution{Company: company, Outcome: Matched, Legacy: true}, nil
	}

	if email != "" {
		existing, err := p.FindCompanyByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("look up company by email: %w", err)
		}
		if existing != nil {
			r.logger.Info("company matched by email",
				zap.String("company_id", existing.ID),
				zap.String("email", email))
			if !req.UpdateExisting {
				return &Resolution{Company: existing, Outcome: Matched}, nil
			}
			updated, err := p.UpdateCompany(ctx, existing.ID, input)
			if err != nil {
				return nil, fmt.Errorf("update company %s: %w", existing.ID, err)
			}
			if updated.MainContactID == "" {
				updated.MainContactID = existing.MainContactID
			}
			return &Resolution{Company: updated, Outcome: Matched}, nil
		}
	}

	created, err := p.CreateCompany(ctx, shopify.CompanyCreateInput{Company: input, CompanyContact: req.Contact})
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	r.logger.Info("company created", zap.String("company_id", created.ID), zap.String("name", created.Name))

	if metafields := identityMetafields(created.ID, email, req.TargetID); len(metafields) > 0 {
		if _, err := p.SetMetafields(ctx, metafields); err != nil {
			if req.StrictIdentity {
				return nil, fmt.Errorf("set identity metafields on %s: %w", created.ID, err)
			}
			r.logger.Error("failed to set identity metafields",
				zap.String("company_id", created.ID),
				zap.Error(err))
		} else {
			created.Email = email
			if isInteger(req.TargetID) {
				created.TargetCompanyID = req.TargetID
			}
		}
	}
	return &Resolution{Company: created, Outcome: Created}, nil
}

func identityMetafields(companyID, email, targetID string) []shopify.MetafieldInput {
	var out []shopify.MetafieldInput
	if email != "" {
		out = append(out, shopify.CompanyEmailMetafield(companyID, email))
	}
	if isInteger(targetID) {
		out = append(out, shopify.TargetCompanyIDMetafield(companyID, targetID))
	}
	return out
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
