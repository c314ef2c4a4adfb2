package company

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"erpsync/internal/apperr"
	"erpsync/internal/payload"
	"erpsync/internal/platformtest"
	"erpsync/internal/services/shopify"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeCountry(t *testing.T) {
	cases := map[string]string{
		"US":             "united states",
		" usa ":          "united states",
		"United  States": "united states",
		"IND":            "india",
		"gb":             "united kingdom",
		"UK":             "united kingdom",
		"Germany":        "germany",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCountry(in), in)
	}
}

func TestSameLocation(t *testing.T) {
	existing := &shopify.Address{Address1: "1 Main St", City: "New York", Zip: "10001", Country: "United States", CountryCode: "US"}

	assert.True(t, SameLocation(existing, shopify.AddressInput{Address1: "1 Main Street", City: "NYC", Zip: " 10001 ", CountryCode: "US"}))
	assert.True(t, SameLocation(&shopify.Address{Zip: "SW1A  1AA", Country: "UK"}, shopify.AddressInput{Zip: "sw1a 1aa", CountryCode: "GB"}))
	assert.False(t, SameLocation(existing, shopify.AddressInput{Zip: "10002", CountryCode: "US"}))
	assert.False(t, SameLocation(existing, shopify.AddressInput{Zip: "10001", CountryCode: "IN"}))
	assert.False(t, SameLocation(existing, shopify.AddressInput{Zip: "", CountryCode: "US"}))
	assert.False(t, SameLocation(nil, shopify.AddressInput{Zip: "10001", CountryCode: "US"}))
}

func TestCandidateAddress(t *testing.T) {
	got := CandidateAddress(payload.Address{Address1: " 1 Main St ", City: "Pune", State: "MH", Zip: "411001"}, "IN")
	assert.Equal(t, shopify.AddressInput{Address1: "1 Main St", City: "Pune", CountryCode: "IN", ZoneCode: "MH", Zip: "411001"}, got)

	got = CandidateAddress(payload.Address{Country: "United Kingdom", Zip: "E1"}, "IN")
	assert.Equal(t, "GB", got.CountryCode)

	got = CandidateAddress(payload.Address{Country: "de"}, "")
	assert.Equal(t, "DE", got.CountryCode)
}

func TestPlanLocation(t *testing.T) {
	existing := []shopify.Location{
		{ID: "default", Name: "Acme"},
		{ID: "a", Name: "Warehouse", ShippingAddress: &shopify.Address{Zip: "10001", CountryCode: "US"}},
		{ID: "b", Name: "Store", ShippingAddress: &shopify.Address{Zip: "94105", CountryCode: "US"}},
	}

	plan := PlanLocation(existing, LocationRequest{CompanyName: "Acme", Address: shopify.AddressInput{Zip: "94105", CountryCode: "US"}})
	require.NotNil(t, plan.Match)
	assert.Equal(t, "b", plan.Match.ID)
	require.NotNil(t, plan.Default)
	assert.Equal(t, "default", plan.Default.ID)

	plan = PlanLocation(existing, LocationRequest{CompanyName: "Acme", Address: shopify.AddressInput{Zip: "60601", CountryCode: "US"}})
	assert.Nil(t, plan.Match)
	assert.Equal(t, "Location 3", plan.NewName)

	plan = PlanLocation(existing, LocationRequest{CompanyName: "Acme", Name: " Chicago ", Address: shopify.AddressInput{Zip: "60601", CountryCode: "US"}})
	assert.Equal(t, "Chicago", plan.NewName)
}

func TestPlanLocation_DefaultNeverMatches(t *testing.T) {
	// A location named after the company but carrying an address is active.
	existing := []shopify.Location{
		{ID: "named", Name: "Acme", ShippingAddress: &shopify.Address{Zip: "10001", CountryCode: "US"}},
	}
	plan := PlanLocation(existing, LocationRequest{CompanyName: "Acme", Address: shopify.AddressInput{Zip: "10001", CountryCode: "US"}})
	require.NotNil(t, plan.Match)
	assert.Nil(t, plan.Default)
}

func TestReconcile_CreatesAndDeletesDefaultAfterCommit(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")
	engine := NewLocationEngine(zap.NewNop())

	result, actions := engine.Reconcile(ctx, p, LocationRequest{
		CompanyID:   c.ID,
		CompanyName: "Acme",
		Address:     shopify.AddressInput{Address1: "1 Main St", Zip: "10001", CountryCode: "US"},
		TaxID:       "GST123",
	})
	require.NoError(t, result.Err)
	assert.Equal(t, Created, result.Outcome)
	assert.Equal(t, "Location 1", result.Location.Name)

	// Nothing is cleaned up until the caller runs the actions.
	assert.Len(t, p.Locations[c.ID], 2)
	assert.Equal(t, 0, p.Count("companyLocationDelete"))

	results := RunActions(ctx, zap.NewNop(), actions)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err, r.Name)
	}
	require.Len(t, p.Locations[c.ID], 1)
	assert.Equal(t, result.ID(), p.Locations[c.ID][0].ID)
	assert.Equal(t, "GST123", p.TaxIDs[result.ID()])
}

func TestReconcile_MatchKeepsDefaultAndName(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")
	loc := p.AddLocation(c.ID, "HQ", &shopify.Address{Address1: "1 Main St", Zip: "10001", CountryCode: "US"})

	result, actions := NewLocationEngine(zap.NewNop()).Reconcile(ctx, p, LocationRequest{
		CompanyID:   c.ID,
		CompanyName: "Acme",
		Name:        "Renamed",
		Address:     shopify.AddressInput{Address1: "1 Main Street", Zip: "10001", CountryCode: "US"},
	})
	require.NoError(t, result.Err)
	assert.Equal(t, Matched, result.Outcome)
	assert.Equal(t, loc.ID, result.ID())
	assert.Equal(t, "HQ", result.Location.Name)
	assert.Empty(t, actions)
	assert.Equal(t, 0, p.Count("companyLocationCreate"))
}

func TestReconcile_CreateFailureLeavesNoLocation(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")
	p.Fail["companyLocationCreate"] = platformtest.UserError("companyLocationCreate", "Zip is invalid")

	result, actions := NewLocationEngine(zap.NewNop()).Reconcile(ctx, p, LocationRequest{
		CompanyID:   c.ID,
		CompanyName: "Acme",
		Address:     shopify.AddressInput{Zip: "x", CountryCode: "US"},
		TaxID:       "GST123",
	})
	assert.Equal(t, Failed, result.Outcome)
	assert.Error(t, result.Err)
	assert.Empty(t, result.ID())
	assert.Empty(t, actions)
	// The default location survives a failed create.
	assert.Len(t, p.Locations[c.ID], 1)
}

func TestReconcile_TaxSettingsUnsupportedIsTolerated(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")
	p.Fail["companyLocationTaxSettingsUpdate"] = platformtest.UserError("companyLocationTaxSettingsUpdate",
		"Field 'companyLocationTaxSettingsUpdate' doesn't exist on type 'Mutation'")

	result, actions := NewLocationEngine(zap.NewNop()).Reconcile(ctx, p, LocationRequest{
		CompanyID: c.ID,
		Address:   shopify.AddressInput{Zip: "10001", CountryCode: "US"},
		TaxID:     "GST123",
	})
	require.NoError(t, result.Err)
	results := RunActions(ctx, zap.NewNop(), actions)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestReconcile_SameZipAndCountryReuses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	zips := gen.IntRange(1, 99999).Map(func(v int) string { return strconv.Itoa(v) })
	countries := gen.OneConstOf("US", "IN", "GB", "usa", "india", "uk")

	properties.Property("equal zip and country reuse the location", prop.ForAll(
		func(zip, country, street1, street2, city1, city2 string) bool {
			ctx := context.Background()
			p := platformtest.New()
			c := p.AddCompany("Acme", "a@acme.com")
			existing := p.AddLocation(c.ID, "HQ", &shopify.Address{Address1: street1, City: city1, Zip: zip, Country: country})

			result, _ := NewLocationEngine(zap.NewNop()).Reconcile(ctx, p, LocationRequest{
				CompanyID:   c.ID,
				CompanyName: "Acme",
				Address:     CandidateAddress(payload.Address{Address1: street2, City: city2, Zip: zip, Country: country}, ""),
			})
			return result.Outcome == Matched && result.ID() == existing.ID
		},
		zips, countries, gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestReconcile_DifferentZipOrCountryNeverReuses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	countries := gen.OneConstOf("US", "IN", "GB")

	properties.Property("differing zip or country never reuse the location", prop.ForAll(
		func(zip1, zip2, country1, country2 string) bool {
			if zip1 == zip2 && country1 == country2 {
				return true
			}
			ctx := context.Background()
			p := platformtest.New()
			c := p.AddCompany("Acme", "a@acme.com")
			existing := p.AddLocation(c.ID, "HQ", &shopify.Address{Zip: zip1, CountryCode: country1})

			result, _ := NewLocationEngine(zap.NewNop()).Reconcile(ctx, p, LocationRequest{
				CompanyID:   c.ID,
				CompanyName: "Acme",
				Address:     shopify.AddressInput{Zip: zip2, CountryCode: country2},
			})
			return result.Outcome != Matched && result.ID() != existing.ID
		},
		gen.NumString(), gen.NumString(), countries, countries,
	))

	properties.TestingRun(t)
}

func TestSelectRole(t *testing.T) {
	def := &shopify.Role{ID: "d", Name: "Default"}
	roles := []shopify.Role{
		{ID: "1", Name: "Location admin"},
		{ID: "2", Name: "Buyer"},
		{ID: "3", Name: "Ordering only"},
	}

	assert.Equal(t, "d", SelectRole(&shopify.CompanyRoles{DefaultRole: def, ContactRoles: roles}).ID)
	assert.Equal(t, "3", SelectRole(&shopify.CompanyRoles{ContactRoles: roles}).ID)
	assert.Equal(t, "2", SelectRole(&shopify.CompanyRoles{ContactRoles: roles[:2]}).ID)
	assert.Equal(t, "1", SelectRole(&shopify.CompanyRoles{ContactRoles: roles[:1]}).ID)
	assert.Equal(t, "x", SelectRole(&shopify.CompanyRoles{ContactRoles: []shopify.Role{{ID: "x", Name: "Viewer"}}}).ID)
	assert.Nil(t, SelectRole(&shopify.CompanyRoles{}))
	assert.Nil(t, SelectRole(nil))
}

func TestAssign_SkipsWithoutLocation(t *testing.T) {
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")

	ok := NewRoleAssigner(zap.NewNop()).Assign(context.Background(), p, RoleRequest{CompanyID: c.ID, ContactID: "contact"})
	assert.False(t, ok)
	assert.Empty(t, p.Calls)
}

func TestAssign_GrantsOrderingRoleAtLocation(t *testing.T) {
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")

	ok := NewRoleAssigner(zap.NewNop()).Assign(context.Background(), p, RoleRequest{CompanyID: c.ID, ContactID: "contact", LocationID: "loc-1"})
	require.True(t, ok)
	require.Len(t, p.Assigned, 1)
	assert.Equal(t, "loc-1", p.Assigned[0].LocationID)
	assert.Equal(t, p.Roles[c.ID].ContactRoles[1].ID, p.Assigned[0].RoleID)
}

func TestAssign_FailureIsAbsorbed(t *testing.T) {
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")
	p.Fail["companyContactAssignRoles"] = errors.New("boom")

	ok := NewRoleAssigner(zap.NewNop()).Assign(context.Background(), p, RoleRequest{CompanyID: c.ID, ContactID: "contact", LocationID: "loc-1"})
	assert.False(t, ok)
}

func TestResolve_IsIdempotentByEmail(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New()
	r := NewResolver(zap.NewNop())
	req := ResolveRequest{Email: "a@acme.com", Name: "Acme", TargetID: "123", UpdateExisting: true, StrictIdentity: true}

	first, err := r.Resolve(ctx, p, req)
	require.NoError(t, err)
	assert.Equal(t, Created, first.Outcome)
	assert.Equal(t, "a@acme.com", first.Company.Email)
	assert.Equal(t, "123", first.Company.TargetCompanyID)

	req.Email = "A@ACME.com"
	second, err := r.Resolve(ctx, p, req)
	require.NoError(t, err)
	assert.Equal(t, Matched, second.Outcome)
	assert.Equal(t, first.Company.ID, second.Company.ID)
	assert.Len(t, p.Companies, 1)
	assert.Equal(t, 1, p.Count("companyCreate"))
}

func TestResolve_TargetIDMetafieldOnlyForIntegers(t *testing.T) {
	p := platformtest.New()
	res, err := NewResolver(zap.NewNop()).Resolve(context.Background(), p, ResolveRequest{Email: "b@acme.com", Name: "B", TargetID: "ext-9"})
	require.NoError(t, err)
	require.Len(t, p.Metafields, 1)
	assert.Equal(t, shopify.CompanyEmailKey, p.Metafields[0].Key)
	assert.Empty(t, res.Company.TargetCompanyID)
}

func TestResolve_LegacyPathUpdatesByID(t *testing.T) {
	p := platformtest.New()
	existing := p.AddCompany("Old", "")

	res, err := NewResolver(zap.NewNop()).Resolve(context.Background(), p, ResolveRequest{
		Name:     "New",
		LegacyID: shopify.LegacyID(existing.ID),
	})
	require.NoError(t, err)
	assert.True(t, res.Legacy)
	assert.Equal(t, existing.ID, res.Company.ID)
	assert.Equal(t, "New", p.Companies[existing.ID].Name)
	assert.Equal(t, 0, p.Count("companies"))
}

func TestResolve_StrictIdentityFailsOnMetafieldError(t *testing.T) {
	p := platformtest.New()
	p.Fail["metafieldsSet"] = platformtest.UserError("metafieldsSet", "Value is invalid")

	_, err := NewResolver(zap.NewNop()).Resolve(context.Background(), p, ResolveRequest{Email: "c@acme.com", Name: "C", StrictIdentity: true})
	assert.Error(t, err)

	res, err := NewResolver(zap.NewNop()).Resolve(context.Background(), p, ResolveRequest{Email: "d@acme.com", Name: "D"})
	require.NoError(t, err)
	assert.Equal(t, Created, res.Outcome)
	assert.Empty(t, res.Company.Email)
}

func strPtr(s string) *string { return &s }

func TestIdentityEditor(t *testing.T) {
	ctx := context.Background()
	p := platformtest.New()
	c := p.AddCompany("Acme", "old@acme.com")
	editor := NewIdentityEditor(zap.NewNop())

	updated, err := editor.Update(ctx, p, shopify.LegacyID(c.ID), IdentityUpdate{CompanyEmail: strPtr(" new@acme.com ")})
	require.NoError(t, err)
	assert.Equal(t, "new@acme.com", updated.Email)
	assert.Equal(t, "new@acme.com", p.Companies[c.ID].Email)

	updated, err = editor.Update(ctx, p, c.ID, IdentityUpdate{TargetCompanyID: strPtr("42")})
	require.NoError(t, err)
	assert.Equal(t, "42", updated.TargetCompanyID)

	_, err = editor.Update(ctx, p, c.ID, IdentityUpdate{CompanyEmail: strPtr("nope")})
	assert.True(t, apperr.Is[*apperr.ValidationError](err))
	_, err = editor.Update(ctx, p, c.ID, IdentityUpdate{TargetCompanyID: strPtr("-1")})
	assert.True(t, apperr.Is[*apperr.ValidationError](err))
	_, err = editor.Update(ctx, p, c.ID, IdentityUpdate{})
	assert.True(t, apperr.Is[*apperr.ValidationError](err))

	_, err = editor.Update(ctx, p, "999999", IdentityUpdate{TargetCompanyID: strPtr("1")})
	assert.True(t, apperr.Is[*apperr.NotFoundError](err))
}

func TestIdentityEditor_DuplicateValue(t *testing.T) {
	p := platformtest.New()
	c := p.AddCompany("Acme", "a@acme.com")
	p.Fail["metafieldsSet"] = platformtest.UserError("metafieldsSet", "Value must be unique across companies")

	_, err := NewIdentityEditor(zap.NewNop()).Update(context.Background(), p, c.ID, IdentityUpdate{TargetCompanyID: strPtr("7")})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, shopify.TargetCompanyIDKey, verr.Field)
	assert.Contains(t, verr.Message, "target company ID is already in use")
}
