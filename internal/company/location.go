package company

import (
	"context"
	"fmt"
	"strings"

	"erpsync/internal/services/shopify"

	"go.uber.org/zap"
)

// LocationRequest asks for a location of CompanyID at Address.
type LocationRequest struct {
	CompanyID string
	// CompanyName identifies the location the platform auto-creates with a
	// new company: same name, no shipping address.
	CompanyName string
	// Name is the free-text location name; empty means "Location N".
	Name    string
	Address shopify.AddressInput
	TaxID   string
}

// Plan is the decision taken from the existing locations, before any write.
type Plan struct {
	// Match is the active location whose address denotes the candidate.
	Match *shopify.Location
	// Default is the auto-created location, deleted once a new one exists.
	Default *shopify.Location
	Active  []shopify.Location
	// NewName names the location to create when Match is nil.
	NewName string
}

// PlanLocation decides between reusing a location and creating one. It never
// matches the default location.
func PlanLocation(existing []shopify.Location, req LocationRequest) Plan {
	var plan Plan
	for i := range existing {
		loc := existing[i]
		if plan.Default == nil && isDefaultLocation(loc, req.CompanyName) {
			plan.Default = &loc
			continue
		}
		if isDefaultLocation(loc, req.CompanyName) {
			continue
		}
		plan.Active = append(plan.Active, loc)
	}

	for i := range plan.Active {
		if SameLocation(plan.Active[i].ShippingAddress, req.Address) {
			plan.Match = &plan.Active[i]
			return plan
		}
	}

	plan.NewName = strings.TrimSpace(req.Name)
	if plan.NewName == "" {
		plan.NewName = fmt.Sprintf("Location %d", len(plan.Active)+1)
	}
	return plan
}

func isDefaultLocation(loc shopify.Location, companyName string) bool {
	return loc.ShippingAddress == nil && loc.Name == companyName
}

// LocationResult is the outcome of one reconciliation. Location is nil
// unless Outcome is Matched or Created.
type LocationResult struct {
	Outcome  Outcome
	Location *shopify.Location
	Plan     Plan
	Err      error
}

// ID returns the established location id, or "" when none was established.
func (r LocationResult) ID() string {
	if r.Location == nil {
		return ""
	}
	return r.Location.ID
}

type LocationEngine struct {
	logger *zap.Logger
}

func NewLocationEngine(logger *zap.Logger) *LocationEngine {
	return &LocationEngine{logger: logger.With(zap.String("component", "location_engine"))}
}

// Reconcile reuses or creates the company location for req.Address. The
// returned actions (default-location deletion, tax id) are best effort and
// must run only after the caller has committed to the result.
func (e *LocationEngine) Reconcile(ctx context.Context, p Platform, req LocationRequest) (LocationResult, []Action) {
	existing, err := p.ListCompanyLocations(ctx, req.CompanyID)
	if err != nil {
		return LocationResult{Outcome: Failed, Err: fmt.Errorf("list locations of %s: %w", req.CompanyID, err)}, nil
	}

	plan := PlanLocation(existing, req)
	if plan.Match != nil {
		e.logger.Info("location matched by zip and country",
			zap.String("company_id", req.CompanyID),
			zap.String("location_id", plan.Match.ID),
			zap.String("location_name", plan.Match.Name))
		result := LocationResult{Outcome: Matched, Location: plan.Match, Plan: plan}
		return result, e.followUps(p, req, result)
	}

	address := req.Address
	created, err := p.CreateCompanyLocation(ctx, req.CompanyID, shopify.LocationInput{
		Name:            plan.NewName,
		ShippingAddress: &address,
	})
	if err != nil {
		e.logger.Warn("location not created; no location will be assigned",
			zap.String("company_id", req.CompanyID),
			zap.Error(err))
		return LocationResult{Outcome: Failed, Plan: plan, Err: fmt.Errorf("create location: %w", err)}, nil
	}

	e.logger.Info("location created",
		zap.String("company_id", req.CompanyID),
		zap.String("location_id", created.ID),
		zap.String("location_name", created.Name))
	result := LocationResult{Outcome: Created, Location: created, Plan: plan}
	return result, e.followUps(p, req, result)
}

func (e *LocationEngine) followUps(p Platform, req LocationRequest, result LocationResult) []Action {
	var actions []Action
	if result.Outcome == Created && result.Plan.Default != nil {
		defaultID := result.Plan.Default.ID
		actions = append(actions, Action{
			Name: "delete_default_location",
			Run: func(ctx context.Context) error {
				return p.DeleteCompanyLocation(ctx, defaultID)
			},
		})
	}
	if taxID := strings.TrimSpace(req.TaxID); taxID != "" && result.ID() != "" {
		locationID := result.ID()
		actions = append(actions, Action{
			Name: "set_tax_registration_id",
			Run: func(ctx context.Context) error {
				err := p.UpdateLocationTaxID(ctx, locationID, taxID)
				if shopify.IsTaxSettingsUnsupported(err) {
					e.logger.Warn("tax id not set: shop has no location tax settings",
						zap.String("location_id", locationID))
					return nil
				}
				return err
			},
		})
	}
	return actions
}
