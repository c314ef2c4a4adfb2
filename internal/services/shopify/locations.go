package shopify

import (
	"context"
)

const companyLocationsQuery = `query companyLocations($companyId: ID!, $after: String) {
  company(id: $companyId) {
    locations(first: 50, after: $after) {
      nodes {
        id
        name
        shippingAddress { address1 address2 city province zip country countryCode }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

// ListCompanyLocations returns every location of a company with its
// shipping address. A company that does not exist has no locations.
func (c *Client) ListCompanyLocations(ctx context.Context, companyID string) ([]Location, error) {
	var (
		locations []Location
		after     interface{}
	)
	for {
		var out struct {
			Company *struct {
				Locations struct {
					Nodes    []Location `json:"nodes"`
					PageInfo pageInfo   `json:"pageInfo"`
				} `json:"locations"`
			} `json:"company"`
		}
		vars := map[string]interface{}{"companyId": companyID, "after": after}
		if err := c.do(ctx, "companyLocations", companyLocationsQuery, vars, &out); err != nil {
			return nil, err
		}
		if out.Company == nil {
			return locations, nil
		}
		locations = append(locations, out.Company.Locations.Nodes...)
		if !out.Company.Locations.PageInfo.HasNextPage {
			return locations, nil
		}
		after = out.Company.Locations.PageInfo.EndCursor
	}
}

const companyLocationCreateMutation = `mutation companyLocationCreate($companyId: ID!, $input: CompanyLocationInput!) {
  companyLocationCreate(companyId: $companyId, input: $input) {
    companyLocation {
      id
      name
      shippingAddress { address1 address2 city province zip country countryCode }
    }
    userErrors { field message code }
  }
}`

func (c *Client) CreateCompanyLocation(ctx context.Context, companyID string, input LocationInput) (*Location, error) {
	var out struct {
		CompanyLocationCreate struct {
			CompanyLocation *Location   `json:"companyLocation"`
			UserErrors      []userError `json:"userErrors"`
		} `json:"companyLocationCreate"`
	}
	vars := map[string]interface{}{"companyId": companyID, "input": input}
	if err := c.do(ctx, "companyLocationCreate", companyLocationCreateMutation, vars, &out); err != nil {
		return nil, err
	}
	if err := checkUserErrors("companyLocationCreate", out.CompanyLocationCreate.UserErrors); err != nil {
		return nil, err
	}
	if out.CompanyLocationCreate.CompanyLocation == nil {
		return nil, missingObject("companyLocationCreate", "companyLocation")
	}
	return out.CompanyLocationCreate.CompanyLocation, nil
}

const companyLocationDeleteMutation = `mutation companyLocationDelete($companyLocationId: ID!) {
  companyLocationDelete(companyLocationId: $companyLocationId) {
    deletedCompanyLocationId
    userErrors { field message code }
  }
}`

func (c *Client) DeleteCompanyLocation(ctx context.Context, locationID string) error {
	var out struct {
		CompanyLocationDelete struct {
			DeletedCompanyLocationID string      `json:"deletedCompanyLocationId"`
			UserErrors               []userError `json:"userErrors"`
		} `json:"companyLocationDelete"`
	}
	vars := map[string]interface{}{"companyLocationId": locationID}
	if err := c.do(ctx, "companyLocationDelete", companyLocationDeleteMutation, vars, &out); err != nil {
		return err
	}
	return checkUserErrors("companyLocationDelete", out.CompanyLocationDelete.UserErrors)
}

const companyLocationTaxSettingsUpdateMutation = `mutation companyLocationTaxSettingsUpdate($companyLocationId: ID!, $taxRegistrationId: String) {
  companyLocationTaxSettingsUpdate(companyLocationId: $companyLocationId, taxRegistrationId: $taxRegistrationId) {
    companyLocation { id taxSettings { taxRegistrationId } }
    userErrors { field message code }
  }
}`

// UpdateLocationTaxID sets the tax registration id of a location. Shops
// without B2B tax settings reject the mutation itself; see
// IsTaxSettingsUnsupported.
func (c *Client) UpdateLocationTaxID(ctx context.Context, locationID, taxID string) error {
	var out struct {
		CompanyLocationTaxSettingsUpdate struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"companyLocationTaxSettingsUpdate"`
	}
	vars := map[string]interface{}{"companyLocationId": locationID, "taxRegistrationId": taxID}
	if err := c.do(ctx, "companyLocationTaxSettingsUpdate", companyLocationTaxSettingsUpdateMutation, vars, &out); err != nil {
		return err
	}
	return checkUserErrors("companyLocationTaxSettingsUpdate", out.CompanyLocationTaxSettingsUpdate.UserErrors)
}
