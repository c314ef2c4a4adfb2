package registration

import (
	"context"
	"testing"

	"erpsync/internal/apperr"
	"erpsync/internal/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validForm() Form {
	return Form{
		Shop:         "acme",
		UserEmail:    "buyer@acme.com",
		FirstName:    "Ada",
		LastName:     "Buyer",
		Phone:        "+911234567890",
		CompanyName:  "Acme Traders",
		CompanyEmail: "accounts@acme.com",
		Address1:     "12 MG Road",
		City:         "Pune",
		Zip:          "411001",
		TaxID:        "27ABCDE1234F1Z5",
	}
}

func TestValidate(t *testing.T) {
	f := validForm()
	require.NoError(t, Validate(f))

	f.CompanyEmail = ""
	err := Validate(f)
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "companyEmail", verr.Field)

	f = validForm()
	f.UserEmail = "not-an-email"
	require.ErrorAs(t, Validate(f), &verr)
	assert.Equal(t, "userEmail", verr.Field)
}

func TestRegister_NewCustomerNewCompany(t *testing.T) {
	p := platformtest.New()

	res, err := NewService(zap.NewNop()).Register(context.Background(), p, validForm())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.CompanyID)
	assert.NotEmpty(t, res.CustomerID)
	assert.NotEmpty(t, res.LocationID)
	assert.True(t, res.RoleAssigned)
	assert.Empty(t, res.CustomerError)

	c := p.Companies[res.CompanyID]
	assert.Equal(t, "accounts@acme.com", c.Email)
	assert.Contains(t, c.ExternalID, "ext-")

	// The default location is replaced by the submitted address.
	locs := p.Locations[res.CompanyID]
	require.Len(t, locs, 1)
	assert.Equal(t, res.LocationID, locs[0].ID)
	assert.Equal(t, "IN", locs[0].ShippingAddress.CountryCode)
	assert.Equal(t, "27ABCDE1234F1Z5", p.TaxIDs[res.LocationID])

	require.Len(t, p.Customers, 1)
	assert.Equal(t, []string{WholesaleTag}, p.Customers[res.CustomerID].Tags)
	assert.Equal(t, 0, p.Count("companyAssignCustomerAsContact"))
	require.Len(t, p.Assigned, 1)
	assert.Equal(t, res.LocationID, p.Assigned[0].LocationID)
}

func TestRegister_ExistingCustomerJoinsExistingCompany(t *testing.T) {
	p := platformtest.New()
	customer := p.AddCustomer("buyer@acme.com", "vip")
	existing := p.AddCompany("Acme Traders", "ACCOUNTS@acme.com")

	res, err := NewService(zap.NewNop()).Register(context.Background(), p, validForm())
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.CompanyID)
	assert.Equal(t, customer.ID, res.CustomerID)
	assert.Equal(t, 0, p.Count("companyCreate"))
	assert.Equal(t, 0, p.Count("customerCreate"))

	assert.Equal(t, []string{"vip", WholesaleTag}, p.Customers[customer.ID].Tags)
	assert.Equal(t, 1, p.Count("companyAssignCustomerAsContact"))
	assert.Equal(t, 1, p.Count("companyAssignMainContact"))
	assert.Equal(t, p.Contacts[existing.ID][0], p.Companies[existing.ID].MainContactID)
	assert.True(t, res.RoleAssigned)
}

func TestRegister_NewCustomerExistingCompany(t *testing.T) {
	p := platformtest.New()
	existing := p.AddCompany("Acme Traders", "accounts@acme.com")

	res, err := NewService(zap.NewNop()).Register(context.Background(), p, validForm())
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.CompanyID)
	assert.Equal(t, 1, p.Count("customerCreate"))
	assert.Equal(t, 1, p.Count("companyAssignCustomerAsContact"))
	assert.Equal(t, 0, p.Count("companyAssignMainContact"))
	assert.True(t, res.RoleAssigned)
}

func TestRegister_RepeatedSubmissionIsIdempotent(t *testing.T) {
	p := platformtest.New()
	svc := NewService(zap.NewNop())

	first, err := svc.Register(context.Background(), p, validForm())
	require.NoError(t, err)
	second, err := svc.Register(context.Background(), p, validForm())
	require.NoError(t, err)

	assert.Equal(t, first.CompanyID, second.CompanyID)
	assert.Equal(t, first.LocationID, second.LocationID)
	assert.Len(t, p.Companies, 1)
	assert.Len(t, p.Customers, 1)
	assert.Equal(t, []string{WholesaleTag}, p.Customers[first.CustomerID].Tags)
}

func TestRegister_LocationFailureDoesNotAbort(t *testing.T) {
	p := platformtest.New()
	p.Fail["companyLocationCreate"] = platformtest.UserError("companyLocationCreate", "Zip is invalid")

	res, err := NewService(zap.NewNop()).Register(context.Background(), p, validForm())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.LocationID)
	assert.False(t, res.RoleAssigned)
	assert.Equal(t, 0, p.Count("companyContactAssignRoles"))
}

func TestRegister_WithoutAddressSkipsLocation(t *testing.T) {
	p := platformtest.New()
	f := validForm()
	f.Address1 = ""

	res, err := NewService(zap.NewNop()).Register(context.Background(), p, f)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Count("companyLocations"))
	assert.False(t, res.RoleAssigned)
}

func TestRegister_CompanyFailureIsReturned(t *testing.T) {
	p := platformtest.New()
	p.Fail["companyCreate"] = platformtest.UserError("companyCreate", "Name is too long")

	_, err := NewService(zap.NewNop()).Register(context.Background(), p, validForm())
	assert.True(t, apperr.Is[*apperr.UpstreamValidationError](err))
}
