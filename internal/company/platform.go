// Package company resolves platform companies from ERP identity signals,
// reconciles their shipping locations and grants ordering roles.
package company

import (
	"context"

	"erpsync/internal/services/shopify"
)

// Platform is the part of the Shopify Admin API the company flows call. All
// calls are scoped to the shop the implementation was built for.
type Platform interface {
	FindCompanyByEmail(ctx context.Context, email string) (*shopify.Company, error)
	CreateCompany(ctx context.Context, input shopify.CompanyCreateInput) (*shopify.Company, error)
	UpdateCompany(ctx context.Context, id string, input shopify.CompanyInput) (*shopify.Company, error)
	SetMetafields(ctx context.Context, metafields []shopify.MetafieldInput) ([]shopify.Metafield, error)

	ListCompanyLocations(ctx context.Context, companyID string) ([]shopify.Location, error)
	CreateCompanyLocation(ctx context.Context, companyID string, input shopify.LocationInput) (*shopify.Location, error)
	DeleteCompanyLocation(ctx context.Context, locationID string) error
	UpdateLocationTaxID(ctx context.Context, locationID, taxID string) error

	GetCompanyRoles(ctx context.Context, companyID string) (*shopify.CompanyRoles, error)
	AssignContactRole(ctx context.Context, contactID, roleID, locationID string) (*shopify.RoleAssignment, error)
}
