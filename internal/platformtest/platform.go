// Package platformtest provides an in-memory stand-in for the Shopify Admin
// API used by the sync, company and registration tests.
package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"erpsync/internal/apperr"
	"erpsync/internal/services/shopify"
)

// Platform mimics the platform behaviour the flows depend on: a new company
// comes with a default location named after it and no shipping address,
// companies are found through their custom.companyEmail metafield, and
// customer emails are unique.
type Platform struct {
	mu sync.Mutex

	nextID int

	Companies  map[string]*shopify.Company
	Locations  map[string][]shopify.Location
	Roles      map[string]*shopify.CompanyRoles
	Contacts   map[string][]string
	Customers  map[string]*shopify.Customer
	Products   map[string]*shopify.Product
	Discounts  []shopify.AutomaticDiscountInput
	TaxIDs     map[string]string
	Metafields []shopify.MetafieldInput
	Assigned   []shopify.RoleAssignment

	// Fail makes the named operation return the error.
	Fail map[string]error
	// Calls lists every operation in call order.
	Calls []string
}

func New() *Platform {
	return &Platform{
		Companies: make(map[string]*shopify.Company),
		Locations: make(map[string][]shopify.Location),
		Roles:     make(map[string]*shopify.CompanyRoles),
		Contacts:  make(map[string][]string),
		Customers: make(map[string]*shopify.Customer),
		Products:  make(map[string]*shopify.Product),
		TaxIDs:    make(map[string]string),
		Fail:      make(map[string]error),
	}
}

// UserError builds the error the platform returns for rejected input.
func UserError(operation string, messages ...string) error {
	errs := make([]apperr.UserError, 0, len(messages))
	for _, m := range messages {
		errs = append(errs, apperr.UserError{Message: m})
	}
	return &apperr.UpstreamValidationError{Operation: operation, Errors: errs}
}

func (p *Platform) call(op string) error {
	p.Calls = append(p.Calls, op)
	return p.Fail[op]
}

func (p *Platform) id(resource string) string {
	p.nextID++
	return shopify.GID(resource, fmt.Sprint(p.nextID))
}

// Count returns how many times op was called.
func (p *Platform) Count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c == op {
			n++
		}
	}
	return n
}

// AddProduct seeds a product with the given numeric id.
func (p *Platform) AddProduct(id, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gid := shopify.GID("Product", id)
	p.Products[gid] = &shopify.Product{ID: gid, Title: title}
}

// AddCompany seeds a company carrying email in its identity metafield.
func (p *Platform) AddCompany(name, email string) *shopify.Company {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.newCompany(shopify.CompanyInput{Name: name}, "")
	c.Email = email
	return c
}

// AddLocation seeds a location under companyID.
func (p *Platform) AddLocation(companyID, name string, address *shopify.Address) shopify.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	loc := shopify.Location{ID: p.id("CompanyLocation"), Name: name, ShippingAddress: address}
	p.Locations[companyID] = append(p.Locations[companyID], loc)
	return loc
}

// AddCustomer seeds a customer.
func (p *Platform) AddCustomer(email string, tags ...string) *shopify.Customer {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &shopify.Customer{ID: p.id("Customer"), Email: email, Tags: tags}
	p.Customers[c.ID] = c
	return c
}

func (p *Platform) newCompany(input shopify.CompanyInput, contactID string) *shopify.Company {
	c := &shopify.Company{
		ID:            p.id("Company"),
		Name:          input.Name,
		ExternalID:    input.ExternalID,
		Note:          input.Note,
		MainContactID: contactID,
	}
	p.Companies[c.ID] = c
	p.Locations[c.ID] = []shopify.Location{{ID: p.id("CompanyLocation"), Name: input.Name}}
	p.Roles[c.ID] = &shopify.CompanyRoles{ContactRoles: []shopify.Role{
		{ID: p.id("CompanyContactRole"), Name: "Location admin"},
		{ID: p.id("CompanyContactRole"), Name: "Ordering only"},
	}}
	if contactID != "" {
		p.Contacts[c.ID] = append(p.Contacts[c.ID], contactID)
	}
	return c
}

func (p *Platform) UpdateProduct(_ context.Context, input shopify.ProductUpdateInput) (*shopify.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("productUpdate"); err != nil {
		return nil, err
	}
	product, ok := p.Products[input.ID]
	if !ok {
		return nil, UserError("productUpdate", "Product does not exist")
	}
	if input.Title != "" {
		product.Title = input.Title
	}
	out := *product
	return &out, nil
}

func (p *Platform) CreateAutomaticDiscount(_ context.Context, input shopify.AutomaticDiscountInput) (*shopify.DiscountNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("discountAutomaticBasicCreate"); err != nil {
		return nil, err
	}
	p.Discounts = append(p.Discounts, input)
	starts := input.StartsAt
	return &shopify.DiscountNode{
		ID:       p.id("DiscountAutomaticNode"),
		Title:    input.Title,
		StartsAt: &starts,
		EndsAt:   input.EndsAt,
	}, nil
}

func (p *Platform) FindCompanyByEmail(_ context.Context, email string) (*shopify.Company, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companies"); err != nil {
		return nil, err
	}
	for _, c := range p.Companies {
		if c.Email != "" && strings.EqualFold(c.Email, email) {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (p *Platform) GetCompany(_ context.Context, id string) (*shopify.Company, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("company"); err != nil {
		return nil, err
	}
	c, ok := p.Companies[shopify.GID("Company", id)]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (p *Platform) CreateCompany(_ context.Context, input shopify.CompanyCreateInput) (*shopify.Company, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyCreate"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Company.Name) == "" {
		return nil, UserError("companyCreate", "Name can't be blank")
	}
	contactID := ""
	if contact := input.CompanyContact; contact != nil {
		contactID = p.id("CompanyContact")
		// The platform creates a customer behind every new company contact.
		if p.customerByEmail(contact.Email) == nil {
			c := &shopify.Customer{
				ID:        p.id("Customer"),
				Email:     contact.Email,
				FirstName: contact.FirstName,
				LastName:  contact.LastName,
				Phone:     contact.Phone,
			}
			p.Customers[c.ID] = c
		}
	}
	c := p.newCompany(input.Company, contactID)
	out := *c
	return &out, nil
}

func (p *Platform) UpdateCompany(_ context.Context, id string, input shopify.CompanyInput) (*shopify.Company, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyUpdate"); err != nil {
		return nil, err
	}
	c, ok := p.Companies[id]
	if !ok {
		return nil, UserError("companyUpdate", "Resource requested does not exist.")
	}
	if input.Name != "" {
		c.Name = input.Name
	}
	if input.Note != "" {
		c.Note = input.Note
	}
	if input.ExternalID != "" {
		c.ExternalID = input.ExternalID
	}
	out := *c
	return &out, nil
}

func (p *Platform) SetMetafields(_ context.Context, metafields []shopify.MetafieldInput) ([]shopify.Metafield, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("metafieldsSet"); err != nil {
		return nil, err
	}
	out := make([]shopify.Metafield, 0, len(metafields))
	for _, m := range metafields {
		c, ok := p.Companies[m.OwnerID]
		if !ok {
			return nil, UserError("metafieldsSet", "Owner does not exist")
		}
		switch m.Key {
		case shopify.CompanyEmailKey:
			c.Email = m.Value
		case shopify.TargetCompanyIDKey:
			c.TargetCompanyID = m.Value
		}
		p.Metafields = append(p.Metafields, m)
		out = append(out, shopify.Metafield{
			ID:        p.id("Metafield"),
			OwnerID:   m.OwnerID,
			Namespace: m.Namespace,
			Key:       m.Key,
			Value:     m.Value,
			Type:      m.Type,
		})
	}
	return out, nil
}

func (p *Platform) ListCompanyLocations(_ context.Context, companyID string) ([]shopify.Location, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyLocations"); err != nil {
		return nil, err
	}
	return append([]shopify.Location(nil), p.Locations[companyID]...), nil
}

func (p *Platform) CreateCompanyLocation(_ context.Context, companyID string, input shopify.LocationInput) (*shopify.Location, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyLocationCreate"); err != nil {
		return nil, err
	}
	if _, ok := p.Companies[companyID]; !ok {
		return nil, UserError("companyLocationCreate", "Company does not exist")
	}
	loc := shopify.Location{ID: p.id("CompanyLocation"), Name: input.Name}
	if a := input.ShippingAddress; a != nil {
		loc.ShippingAddress = &shopify.Address{
			Address1:    a.Address1,
			Address2:    a.Address2,
			City:        a.City,
			Province:    a.ZoneCode,
			Zip:         a.Zip,
			CountryCode: a.CountryCode,
		}
	}
	p.Locations[companyID] = append(p.Locations[companyID], loc)
	out := loc
	return &out, nil
}

func (p *Platform) DeleteCompanyLocation(_ context.Context, locationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyLocationDelete"); err != nil {
		return err
	}
	for companyID, locs := range p.Locations {
		for i, l := range locs {
			if l.ID == locationID {
				p.Locations[companyID] = append(locs[:i:i], locs[i+1:]...)
				return nil
			}
		}
	}
	return UserError("companyLocationDelete", "Company location does not exist")
}

func (p *Platform) UpdateLocationTaxID(_ context.Context, locationID, taxID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyLocationTaxSettingsUpdate"); err != nil {
		return err
	}
	p.TaxIDs[locationID] = taxID
	return nil
}

func (p *Platform) GetCompanyRoles(_ context.Context, companyID string) (*shopify.CompanyRoles, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyRoles"); err != nil {
		return nil, err
	}
	roles, ok := p.Roles[companyID]
	if !ok {
		return &shopify.CompanyRoles{}, nil
	}
	out := *roles
	out.ContactRoles = append([]shopify.Role(nil), roles.ContactRoles...)
	return &out, nil
}

func (p *Platform) AssignContactRole(_ context.Context, contactID, roleID, locationID string) (*shopify.RoleAssignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyContactAssignRoles"); err != nil {
		return nil, err
	}
	a := shopify.RoleAssignment{ID: p.id("CompanyContactRoleAssignment"), RoleID: roleID, LocationID: locationID}
	p.Assigned = append(p.Assigned, a)
	return &a, nil
}

func (p *Platform) AssignCustomerAsContact(_ context.Context, companyID, customerID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyAssignCustomerAsContact"); err != nil {
		return "", err
	}
	if _, ok := p.Companies[companyID]; !ok {
		return "", UserError("companyAssignCustomerAsContact", "Company does not exist")
	}
	contactID := p.id("CompanyContact")
	p.Contacts[companyID] = append(p.Contacts[companyID], contactID)
	return contactID, nil
}

func (p *Platform) AssignMainContact(_ context.Context, companyID, contactID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("companyAssignMainContact"); err != nil {
		return err
	}
	c, ok := p.Companies[companyID]
	if !ok {
		return UserError("companyAssignMainContact", "Company does not exist")
	}
	c.MainContactID = contactID
	return nil
}

func (p *Platform) FindCustomerByEmail(_ context.Context, email string) (*shopify.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("customers"); err != nil {
		return nil, err
	}
	c := p.customerByEmail(email)
	if c == nil {
		return nil, nil
	}
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	return &out, nil
}

func (p *Platform) customerByEmail(email string) *shopify.Customer {
	for _, c := range p.Customers {
		if strings.EqualFold(c.Email, email) {
			return c
		}
	}
	return nil
}

func (p *Platform) CreateCustomer(_ context.Context, input shopify.CustomerInput) (*shopify.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("customerCreate"); err != nil {
		return nil, err
	}
	if p.customerByEmail(input.Email) != nil {
		return nil, UserError("customerCreate", "Email has already been taken")
	}
	c := &shopify.Customer{
		ID:        p.id("Customer"),
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Tags:      append([]string(nil), input.Tags...),
	}
	p.Customers[c.ID] = c
	out := *c
	return &out, nil
}

func (p *Platform) UpdateCustomer(_ context.Context, input shopify.CustomerInput) (*shopify.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.call("customerUpdate"); err != nil {
		return nil, err
	}
	c, ok := p.Customers[input.ID]
	if !ok {
		return nil, UserError("customerUpdate", "Customer does not exist")
	}
	if input.FirstName != "" {
		c.FirstName = input.FirstName
	}
	if input.LastName != "" {
		c.LastName = input.LastName
	}
	if input.Phone != "" {
		c.Phone = input.Phone
	}
	if input.Tags != nil {
		c.Tags = append([]string(nil), input.Tags...)
	}
	out := *c
	return &out, nil
}

// ActiveLocations returns the locations of companyID that carry an address.
func (p *Platform) ActiveLocations(companyID string) []shopify.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shopify.Location
	for _, l := range p.Locations[companyID] {
		if l.ShippingAddress != nil {
			out = append(out, l)
		}
	}
	return out
}
