package syncer

import (
	"context"
	"fmt"
	"strings"

	"erpsync/internal/company"
	"erpsync/internal/models"
	"erpsync/internal/payload"
	"erpsync/internal/services/shopify"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CompanyHandler resolves the company, reconciles its shipping location and
// grants the contact ordering rights there. Failures up to and including
// the location abort the sync; cleanup and the role grant are best effort.
type CompanyHandler struct {
	resolver  *company.Resolver
	locations *company.LocationEngine
	roles     *company.RoleAssigner
	logger    *zap.Logger
}

func NewCompanyHandler(logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{
		resolver:  company.NewResolver(logger),
		locations: company.NewLocationEngine(logger),
		roles:     company.NewRoleAssigner(logger),
		logger:    logger.With(zap.String("component", "company_sync")),
	}
}

func (h *CompanyHandler) Sync(ctx context.Context, p Platform, msg *models.InboundMessage, body payload.Body) (*Result, error) {
	b, ok := body.(payload.CompanyBody)
	if !ok {
		return nil, fmt.Errorf("company handler got %T", body)
	}

	resolution, err := h.resolver.Resolve(ctx, p, company.ResolveRequest{
		Email:          b.Email,
		Name:           b.Name,
		Note:           b.Note,
		ExternalID:     firstNonEmpty(b.ExternalID, b.CompanyID),
		TargetID:       firstNonEmpty(b.TargetID, msg.TargetID),
		LegacyID:       firstNonEmpty(b.ExternalID, b.CompanyID, b.TargetID),
		UpdateExisting: true,
		StrictIdentity: true,
	})
	if err != nil {
		return nil, err
	}
	c := resolution.Company
	result := &Result{PlatformID: c.ID, Company: c, CompanyOutcome: resolution.Outcome}

	if !b.Address.Present() {
		h.logger.Info("no address submitted; location and role untouched", zap.String("company_id", c.ID))
		return result, nil
	}

	var (
		roles    *shopify.CompanyRoles
		location company.LocationResult
		actions  []company.Action
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := p.GetCompanyRoles(gctx, c.ID)
		if err != nil {
			h.logger.Warn("company roles prefetch failed", zap.String("company_id", c.ID), zap.Error(err))
			return nil
		}
		roles = fetched
		return nil
	})
	g.Go(func() error {
		location, actions = h.locations.Reconcile(gctx, p, company.LocationRequest{
			CompanyID:   c.ID,
			CompanyName: c.Name,
			Name:        b.Location,
			Address:     company.CandidateAddress(b.Address, ""),
			TaxID:       b.TaxID,
		})
		return location.Err
	})
	if err := g.Wait(); err != nil {
		return result, err
	}
	result.Location = location.Location
	result.LocationOutcome = location.Outcome

	result.Actions = company.RunActions(ctx, h.logger, actions)

	contactID := c.MainContactID
	if b.ContactID != "" {
		contactID = shopify.GID("CompanyContact", b.ContactID)
	}
	result.RoleAssigned = h.roles.Assign(ctx, p, company.RoleRequest{
		CompanyID:  c.ID,
		ContactID:  contactID,
		LocationID: location.ID(),
		Roles:      roles,
	})
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
