// Package payload decodes stored ERP change requests into one typed body per
// entity code, each checked against its own JSON schema.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"erpsync/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// Body is one variant of the entity-keyed payload union.
type Body interface {
	Entity() models.EntityCode
}

type ProductBody struct {
	SKU   string
	Title string
}

func (ProductBody) Entity() models.EntityCode { return models.EntityProduct }

type PriceLevelBody struct {
	// DiscountPercentage is the ERP value in percent, 0 to 100.
	DiscountPercentage decimal.Decimal
	Title              string
	StartsAt           *time.Time
	EndsAt             *time.Time
}

func (PriceLevelBody) Entity() models.EntityCode { return models.EntityPriceLevel }

// Fraction is the discount as the platform expects it: 15 becomes 0.15.
func (b PriceLevelBody) Fraction() decimal.Decimal {
	return b.DiscountPercentage.Div(decimal.NewFromInt(100))
}

type CompanyBody struct {
	Name       string
	Note       string
	ExternalID string
	CompanyID  string
	TargetID   string
	Email      string
	ContactID  string
	Location   string
	TaxID      string
	Address    Address
}

func (CompanyBody) Entity() models.EntityCode { return models.EntityCompany }

// Address is a candidate shipping address as submitted.
type Address struct {
	Address1 string
	Address2 string
	City     string
	State    string
	Country  string
	Zip      string
}

// Present reports whether the address carries enough to reconcile a location.
func (a Address) Present() bool {
	return strings.TrimSpace(a.Address1) != "" || strings.TrimSpace(a.Zip) != ""
}

// Decode turns a stored payload into a JSON object. It accepts a document
// that was stored as an encoded JSON string and unwraps the {"body": ...}
// envelope written on create.
func Decode(raw []byte) (map[string]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if s, ok := doc.(string); ok {
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, fmt.Errorf("payload string is not valid JSON: %w", err)
		}
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("payload must be a JSON object, got %T", doc)
	}

	switch body := obj["body"].(type) {
	case map[string]interface{}:
		return body, nil
	case string:
		var inner map[string]interface{}
		if err := json.Unmarshal([]byte(body), &inner); err == nil {
			return inner, nil
		}
	}
	return obj, nil
}

// Parse validates fields against the schema for code and builds its body.
// Codes without a schema have no typed body.
func Parse(code models.EntityCode, fields map[string]interface{}) (Body, error) {
	schema, ok := schemas[code]
	if !ok {
		return nil, fmt.Errorf("no payload schema for entity %q", code)
	}
	if err := schema.Validate(fields); err != nil {
		return nil, fmt.Errorf("%s payload: %w", code, err)
	}

	switch code {
	case models.EntityProduct:
		return ProductBody{
			SKU:   str(fields, "sku"),
			Title: str(fields, "title"),
		}, nil

	case models.EntityPriceLevel:
		pct, err := decimal.NewFromString(str(fields, "discount_percentage"))
		if err != nil {
			return nil, fmt.Errorf("price_level payload: discount_percentage: %w", err)
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("price_level payload: discount_percentage %s is outside 0..100", pct)
		}
		body := PriceLevelBody{DiscountPercentage: pct, Title: str(fields, "title")}
		if body.StartsAt, err = timeField(fields, "starts_at", "startsAt"); err != nil {
			return nil, err
		}
		if body.EndsAt, err = timeField(fields, "ends_at", "endsAt"); err != nil {
			return nil, err
		}
		return body, nil

	case models.EntityCompany:
		return CompanyBody{
			Name:       str(fields, "name", "company_name", "companyName"),
			Note:       str(fields, "note", "description"),
			ExternalID: str(fields, "externalId"),
			CompanyID:  str(fields, "company_id", "companyId"),
			TargetID:   str(fields, "targetId"),
			Email:      strings.TrimSpace(str(fields, "email", "companyEmail")),
			ContactID:  str(fields, "contactId", "companyContactId"),
			Location:   strings.TrimSpace(str(fields, "location")),
			TaxID:      strings.TrimSpace(str(fields, "taxId", "tax_id")),
			Address: Address{
				Address1: strings.TrimSpace(str(fields, "address1")),
				Address2: strings.TrimSpace(str(fields, "address2")),
				City:     strings.TrimSpace(str(fields, "city")),
				State:    strings.TrimSpace(str(fields, "state", "province")),
				Country:  strings.TrimSpace(str(fields, "country", "countryCode")),
				Zip:      strings.TrimSpace(str(fields, "zip_code", "zipCode", "zip")),
			},
		}, nil
	}
	return nil, fmt.Errorf("no payload decoder for entity %q", code)
}

// HasSchema reports whether Parse understands code.
func HasSchema(code models.EntityCode) bool {
	_, ok := schemas[code]
	return ok
}

// str returns the first non-empty value among keys, rendering numbers
// without exponent so numeric ERP ids survive as text.
func str(fields map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func timeField(fields map[string]interface{}, keys ...string) (*time.Time, error) {
	raw := str(fields, keys...)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keys[0], err)
	}
	return &t, nil
}

var schemas = mustCompile(map[models.EntityCode]string{
	models.EntityProduct: `{
		"type": "object",
		"required": ["sku", "title"],
		"properties": {
			"sku": {"type": ["string", "integer"], "minLength": 1},
			"title": {"type": "string", "minLength": 1}
		}
	}`,
	models.EntityPriceLevel: `{
		"type": "object",
		"required": ["discount_percentage"],
		"properties": {
			"discount_percentage": {
				"anyOf": [
					{"type": "number", "minimum": 0, "maximum": 100},
					{"type": "string", "pattern": "^\\s*\\d+(\\.\\d+)?\\s*$"}
				]
			},
			"title": {"type": "string"},
			"starts_at": {"type": "string"},
			"ends_at": {"type": "string"}
		}
	}`,
	models.EntityCompany: `{
		"type": "object",
		"anyOf": [
			{"required": ["name"], "properties": {"name": {"type": "string", "minLength": 1}}},
			{"required": ["company_name"], "properties": {"company_name": {"type": "string", "minLength": 1}}}
		],
		"properties": {
			"email": {"type": "string"},
			"externalId": {"type": ["string", "integer"]},
			"company_id": {"type": ["string", "integer"]},
			"targetId": {"type": ["string", "integer"]},
			"zip_code": {"type": ["string", "integer"]},
			"zipCode": {"type": ["string", "integer"]},
			"country": {"type": "string"},
			"address1": {"type": "string"},
			"taxId": {"type": "string"}
		}
	}`,
})

func mustCompile(sources map[models.EntityCode]string) map[models.EntityCode]*jsonschema.Schema {
	out := make(map[models.EntityCode]*jsonschema.Schema, len(sources))
	for code, src := range sources {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://erpsync.local/payload/%s.schema.json", code)
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			panic(fmt.Sprintf("payload schema %s: %v", code, err))
		}
		schema, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("payload schema %s: %v", code, err))
		}
		out[code] = schema
	}
	return out
}
