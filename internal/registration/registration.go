// Package registration onboards a wholesale buyer from the storefront form:
// customer, company, location and ordering role in one pass.
package registration

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"erpsync/internal/apperr"
	"erpsync/internal/company"
	"erpsync/internal/payload"
	"erpsync/internal/services/shopify"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WholesaleTag marks customers registered through the form.
const WholesaleTag = "wholesale"

// DefaultCountry applies when the form has no country.
const DefaultCountry = "IN"

// Platform is the platform surface registration calls.
type Platform interface {
	company.Platform
	FindCustomerByEmail(ctx context.Context, email string) (*shopify.Customer, error)
	CreateCustomer(ctx context.Context, input shopify.CustomerInput) (*shopify.Customer, error)
	UpdateCustomer(ctx context.Context, input shopify.CustomerInput) (*shopify.Customer, error)
	AssignCustomerAsContact(ctx context.Context, companyID, customerID string) (string, error)
	AssignMainContact(ctx context.Context, companyID, contactID string) error
}

type Form struct {
	Shop         string `json:"shop"`
	UserEmail    string `json:"userEmail" validate:"required,email"`
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	CompanyName  string `json:"companyName" validate:"required"`
	CompanyEmail string `json:"companyEmail" validate:"required,email"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	Zip          string `json:"zip_code"`
	Location     string `json:"location"`
	TaxID        string `json:"taxId"`
}

func (f Form) address() payload.Address {
	return payload.Address{
		Address1: f.Address1,
		Address2: f.Address2,
		City:     f.City,
		State:    f.State,
		Country:  f.Country,
		Zip:      f.Zip,
	}
}

type Result struct {
	Success       bool   `json:"success"`
	CompanyID     string `json:"companyId"`
	CustomerID    string `json:"customerId,omitempty"`
	LocationID    string `json:"locationId,omitempty"`
	RoleAssigned  bool   `json:"roleAssigned"`
	Message       string `json:"message"`
	CustomerError string `json:"customerError,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports the first invalid field of f as a ValidationError.
func Validate(f Form) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return apperr.Validation(fe.Field(), "is required")
		case "email":
			return apperr.Validation(fe.Field(), "is not a valid email address")
		}
		return apperr.Validation(fe.Field(), "is invalid")
	}
	return apperr.Validation("", "%v", err)
}

type Service struct {
	resolver  *company.Resolver
	locations *company.LocationEngine
	roles     *company.RoleAssigner
	logger    *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{
		resolver:  company.NewResolver(logger),
		locations: company.NewLocationEngine(logger),
		roles:     company.NewRoleAssigner(logger),
		logger:    logger.With(zap.String("component", "registration")),
	}
}

// Register runs the wholesale onboarding. Only validation and company
// resolution failures are returned; customer, location and contact problems
// are reported in the result.
func (s *Service) Register(ctx context.Context, p Platform, f Form) (*Result, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}
	f.UserEmail = strings.TrimSpace(f.UserEmail)
	f.CompanyEmail = strings.TrimSpace(f.CompanyEmail)
	log := s.logger.With(zap.String("user_email", f.UserEmail), zap.String("company_email", f.CompanyEmail))
	result := &Result{}

	customer, err := p.FindCustomerByEmail(ctx, f.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("look up customer: %w", err)
	}
	existingCustomer := customer != nil
	if existingCustomer {
		if updated, err := s.refreshCustomer(ctx, p, customer, f); err != nil {
			log.Warn("existing customer not updated", zap.Error(err))
			result.CustomerError = err.Error()
		} else {
			customer = updated
		}
	}

	req := company.ResolveRequest{
		Email:      f.CompanyEmail,
		Name:       f.CompanyName,
		ExternalID: "ext-" + uuid.NewString(),
	}
	if !existingCustomer {
		req.Contact = &shopify.ContactInput{Email: f.UserEmail, FirstName: f.FirstName, LastName: f.LastName, Phone: f.Phone}
	}
	resolution, err := s.resolver.Resolve(ctx, p, req)
	if err != nil {
		return nil, err
	}
	c := resolution.Company
	result.CompanyID = c.ID

	var location company.LocationResult
	if strings.TrimSpace(f.Address1) != "" {
		var actions []company.Action
		location, actions = s.locations.Reconcile(ctx, p, company.LocationRequest{
			CompanyID:   c.ID,
			CompanyName: c.Name,
			Name:        f.Location,
			Address:     company.CandidateAddress(f.address(), DefaultCountry),
			TaxID:       f.TaxID,
		})
		if location.Err != nil {
			log.Warn("registration continues without a location", zap.Error(location.Err))
		}
		company.RunActions(ctx, s.logger, actions)
		result.LocationID = location.ID()
	}

	if !existingCustomer {
		customer, err = s.createCustomer(ctx, p, f)
		if err != nil {
			log.Warn("customer not created", zap.Error(err))
			result.CustomerError = err.Error()
		}
	}
	if customer != nil {
		result.CustomerID = customer.ID
	}

	contactID := ""
	switch {
	case customer == nil:
	case existingCustomer || resolution.Outcome == company.Matched:
		contactID, err = p.AssignCustomerAsContact(ctx, c.ID, customer.ID)
		if err != nil {
			log.Warn("customer not assigned as company contact", zap.String("company_id", c.ID), zap.Error(err))
			contactID = ""
			break
		}
		if existingCustomer {
			if err := p.AssignMainContact(ctx, c.ID, contactID); err != nil {
				log.Warn("main contact not assigned", zap.String("company_id", c.ID), zap.Error(err))
			}
		}
	default:
		// companyCreate already made the customer its main contact.
		contactID = c.MainContactID
	}

	if contactID != "" {
		result.RoleAssigned = s.roles.Assign(ctx, p, company.RoleRequest{
			CompanyID:  c.ID,
			ContactID:  contactID,
			LocationID: location.ID(),
		})
	}

	result.Success = true
	result.Message = "Registration completed successfully"
	if resolution.Outcome == company.Matched {
		result.Message = "Registration completed; joined existing company"
	}
	log.Info("wholesale registration completed",
		zap.String("company_id", result.CompanyID),
		zap.String("customer_id", result.CustomerID),
		zap.String("location_id", result.LocationID),
		zap.Bool("role_assigned", result.RoleAssigned))
	return result, nil
}

func (s *Service) refreshCustomer(ctx context.Context, p Platform, existing *shopify.Customer, f Form) (*shopify.Customer, error) {
	return p.UpdateCustomer(ctx, shopify.CustomerInput{
		ID:        existing.ID,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     strings.TrimSpace(f.Phone),
		Tags:      shopify.MergeTags(existing.Tags, WholesaleTag),
	})
}

// createCustomer creates the buyer, falling back to an update when the
// platform already holds the email (as after companyCreate with a contact).
func (s *Service) createCustomer(ctx context.Context, p Platform, f Form) (*shopify.Customer, error) {
	created, err := p.CreateCustomer(ctx, shopify.CustomerInput{
		Email:     f.UserEmail,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     strings.TrimSpace(f.Phone),
		Tags:      []string{WholesaleTag},
	})
	if err == nil {
		return created, nil
	}

	var upstream *apperr.UpstreamValidationError
	if !errors.As(err, &upstream) || !upstream.Mentions("has already been taken") {
		return nil, err
	}
	existing, ferr := p.FindCustomerByEmail(ctx, f.UserEmail)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, err
	}
	return s.refreshCustomer(ctx, p, existing, f)
}
