package shopify

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metafield identity of a company.
const (
	MetafieldNamespace       = "custom"
	CompanyEmailKey          = "companyEmail"
	TargetCompanyIDKey       = "targetCompanyId"
	MetafieldTypeSingleLine  = "single_line_text_field"
	MetafieldTypeIntegerType = "number_integer"
)

// GID builds a global id such as gid://shopify/Company/42. Values that are
// already global ids are returned unchanged.
func GID(resource, id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return fmt.Sprintf("gid://shopify/%s/%s", resource, id)
}

// LegacyID returns the trailing numeric part of a global id.
func LegacyID(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

// Product represents a Shopify product
type Product struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ProductUpdateInput struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// DiscountNode is an automatic discount as returned by discountAutomaticBasicCreate.
type DiscountNode struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

// AutomaticDiscountInput describes a store-wide percentage discount.
// Percentage is a fraction: 0.15 means 15% off.
type AutomaticDiscountInput struct {
	Title      string
	StartsAt   time.Time
	EndsAt     *time.Time
	Percentage decimal.Decimal
}

// Address is a company location shipping address.
type Address struct {
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

type AddressInput struct {
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
	ZoneCode    string `json:"zoneCode,omitempty"`
	Zip         string `json:"zip"`
}

type Location struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ShippingAddress *Address `json:"shippingAddress"`
}

type LocationInput struct {
	Name            string        `json:"name"`
	ShippingAddress *AddressInput `json:"shippingAddress,omitempty"`
}

type Company struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ExternalID      string `json:"externalId,omitempty"`
	Note            string `json:"note,omitempty"`
	MainContactID   string `json:"mainContactId,omitempty"`
	Email           string `json:"companyEmail,omitempty"`
	TargetCompanyID string `json:"targetCompanyId,omitempty"`
}

type CompanyInput struct {
	Name       string `json:"name,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	Note       string `json:"note,omitempty"`
}

type ContactInput struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type CompanyCreateInput struct {
	Company        CompanyInput   `json:"company"`
	CompanyContact *ContactInput  `json:"companyContact,omitempty"`
	Location       *LocationInput `json:"companyLocation,omitempty"`
}

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompanyRoles lists the roles a company contact can be granted.
type CompanyRoles struct {
	DefaultRole  *Role
	ContactRoles []Role
}

type RoleAssignment struct {
	ID         string
	RoleID     string
	LocationID string
}

type Metafield struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId,omitempty"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

type MetafieldInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

type Customer struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phone"`
	Tags      []string `json:"tags"`
}

type CustomerInput struct {
	ID        string   `json:"id,omitempty"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Variant represents a product variant in a webhook payload
type Variant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	Title             string `json:"title"`
	Sku               string `json:"sku"`
	AdminGraphQLAPIID string `json:"admin_graphql_api_id"`
}

// WebhookPayload holds the fields read from any webhook topic we ingest.
type WebhookPayload struct {
	ID                int64     `json:"id"`
	AdminGraphQLAPIID string    `json:"admin_graphql_api_id"`
	Title             string    `json:"title"`
	Email             string    `json:"email"`
	Variants          []Variant `json:"variants"`
}
