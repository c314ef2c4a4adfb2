package company

import (
	"strings"

	"erpsync/internal/payload"
	"erpsync/internal/services/shopify"
)

var countryAliases = map[string]string{
	"us":             "united states",
	"usa":            "united states",
	"united states":  "united states",
	"in":             "india",
	"ind":            "india",
	"india":          "india",
	"uk":             "united kingdom",
	"gb":             "united kingdom",
	"united kingdom": "united kingdom",
}

var countryCodes = map[string]string{
	"united states":  "US",
	"india":          "IN",
	"united kingdom": "GB",
}

// NormalizeField lower-cases s, trims it and collapses inner whitespace.
func NormalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeCountry maps a country name or code to a canonical token.
func NormalizeCountry(s string) string {
	n := NormalizeField(s)
	if alias, ok := countryAliases[n]; ok {
		return alias
	}
	return n
}

// SameLocation reports whether an existing shipping address and a candidate
// address denote the same location: equal non-empty normalized zip and
// country. Street lines and city are not compared.
func SameLocation(existing *shopify.Address, candidate shopify.AddressInput) bool {
	if existing == nil {
		return false
	}
	zip := NormalizeField(candidate.Zip)
	country := NormalizeCountry(candidate.CountryCode)
	if zip == "" || country == "" || NormalizeField(existing.Zip) != zip {
		return false
	}
	return NormalizeCountry(existing.Country) == country ||
		NormalizeCountry(existing.CountryCode) == country
}

// CandidateAddress builds the shipping address sent to the platform from a
// submitted address. defaultCountry applies when none was given.
func CandidateAddress(a payload.Address, defaultCountry string) shopify.AddressInput {
	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = defaultCountry
	}
	code, ok := countryCodes[NormalizeCountry(country)]
	if !ok {
		code = strings.ToUpper(country)
	}
	return shopify.AddressInput{
		Address1:    strings.TrimSpace(a.Address1),
		Address2:    strings.TrimSpace(a.Address2),
		City:        strings.TrimSpace(a.City),
		CountryCode: code,
		ZoneCode:    strings.TrimSpace(a.State),
		Zip:         strings.TrimSpace(a.Zip),
	}
}
