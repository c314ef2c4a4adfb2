package company

import (
	"context"
	"strings"

	"erpsync/internal/apperr"
	"erpsync/internal/services/shopify"

	"go.uber.org/zap"
)

var rolePreference = []string{"ordering", "buyer", "admin"}

// SelectRole picks the role granting ordering rights: the company default
// role, else the first contact role whose name contains "ordering", "buyer"
// or "admin" (in that order of preference), else the first role.
func SelectRole(roles *shopify.CompanyRoles) *shopify.Role {
	if roles == nil {
		return nil
	}
	if roles.DefaultRole != nil && roles.DefaultRole.ID != "" {
		return roles.DefaultRole
	}
	for _, want := range rolePreference {
		for i := range roles.ContactRoles {
			if strings.Contains(strings.ToLower(roles.ContactRoles[i].Name), want) {
				return &roles.ContactRoles[i]
			}
		}
	}
	if len(roles.ContactRoles) > 0 {
		return &roles.ContactRoles[0]
	}
	return nil
}

type RoleAssigner struct {
	logger *zap.Logger
}

func NewRoleAssigner(logger *zap.Logger) *RoleAssigner {
	return &RoleAssigner{logger: logger.With(zap.String("component", "role_assigner"))}
}

// RoleRequest grants ContactID ordering rights at LocationID. Roles may be
// prefetched; nil means fetch them.
type RoleRequest struct {
	CompanyID  string
	ContactID  string
	LocationID string
	Roles      *shopify.CompanyRoles
}

// Assign grants the selected role and reports whether it was assigned.
// Failures are logged as PermissionAssignmentError and never returned. A
// request without a location is refused before any platform call.
func (a *RoleAssigner) Assign(ctx context.Context, p Platform, req RoleRequest) bool {
	fail := func(reason string, err error) bool {
		perr := &apperr.PermissionAssignmentError{CompanyID: req.CompanyID, LocationID: req.LocationID, Reason: reason}
		a.logger.Warn("ordering role not assigned", zap.Error(perr), zap.NamedError("cause", err))
		return false
	}

	if req.LocationID == "" {
		return fail("no location established for the submitted address", nil)
	}
	if req.ContactID == "" {
		return fail("company has no contact to grant", nil)
	}

	roles := req.Roles
	if roles == nil {
		var err error
		if roles, err = p.GetCompanyRoles(ctx, req.CompanyID); err != nil {
			return fail("fetch company roles", err)
		}
	}
	role := SelectRole(roles)
	if role == nil {
		return fail("company has no contact roles", nil)
	}

	if _, err := p.AssignContactRole(ctx, req.ContactID, role.ID, req.LocationID); err != nil {
		return fail("assign role "+role.Name, err)
	}
	a.logger.Info("ordering role assigned",
		zap.String("company_id", req.CompanyID),
		zap.String("contact_id", req.ContactID),
		zap.String("location_id", req.LocationID),
		zap.String("role", role.Name))
	return true
}
