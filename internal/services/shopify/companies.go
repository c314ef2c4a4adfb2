package shopify

import (
	"context"
	"strings"
)

const companyFields = `
  id
  name
  externalId
  note
  mainContact { id }
  email: metafield(namespace: "custom", key: "companyEmail") { value }
  targetCompanyId: metafield(namespace: "custom", key: "targetCompanyId") { value }`

type companyNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ExternalID  string `json:"externalId"`
	Note        string `json:"note"`
	MainContact *struct {
		ID string `json:"id"`
	} `json:"mainContact"`
	Email *struct {
		Value string `json:"value"`
	} `json:"email"`
	TargetCompanyID *struct {
		Value string `json:"value"`
	} `json:"targetCompanyId"`
}

func (n *companyNode) company() *Company {
	c := &Company{ID: n.ID, Name: n.Name, ExternalID: n.ExternalID, Note: n.Note}
	if n.MainContact != nil {
		c.MainContactID = n.MainContact.ID
	}
	if n.Email != nil {
		c.Email = n.Email.Value
	}
	if n.TargetCompanyID != nil {
		c.TargetCompanyID = n.TargetCompanyID.Value
	}
	return c
}

const companiesQuery = `query companies($after: String) {
  companies(first: 50, after: $after) {
    nodes {` + companyFields + `
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// FindCompanyByEmail walks every company of the shop and returns the one
// whose custom.companyEmail metafield equals email, ignoring case. It returns
// nil when none matches.
func (c *Client) FindCompanyByEmail(ctx context.Context, email string) (*Company, error) {
	want := strings.ToLower(strings.TrimSpace(email))
	if want == "" {
		return nil, nil
	}

	var after interface{}
	for {
		var out struct {
			Companies struct {
				Nodes    []companyNode `json:"nodes"`
				PageInfo pageInfo      `json:"pageInfo"`
			} `json:"companies"`
		}
		if err := c.do(ctx, "companies", companiesQuery, map[string]interface{}{"after": after}, &out); err != nil {
			return nil, err
		}
		for i := range out.Companies.Nodes {
			company := out.Companies.Nodes[i].company()
			if strings.ToLower(strings.TrimSpace(company.Email)) == want {
				return company, nil
			}
		}
		if !out.Companies.PageInfo.HasNextPage {
			return nil, nil
		}
		after = out.Companies.PageInfo.EndCursor
	}
}

const companyQuery = `query company($id: ID!) {
  company(id: $id) {` + companyFields + `
  }
}`

// GetCompany returns nil when the id does not resolve to a company.
func (c *Client) GetCompany(ctx context.Context, id string) (*Company, error) {
	var out struct {
		Company *companyNode `json:"company"`
	}
	if err := c.do(ctx, "company", companyQuery, map[string]interface{}{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Company == nil {
		return nil, nil
	}
	return out.Company.company(), nil
}

const companyCreateMutation = `mutation companyCreate($input: CompanyCreateInput!) {
  companyCreate(input: $input) {
    company {` + companyFields + `
    }
    userErrors { field message code }
  }
}`

func (c *Client) CreateCompany(ctx context.Context, input CompanyCreateInput) (*Company, error) {
	var out struct {
		CompanyCreate struct {
			Company    *companyNode `json:"company"`
			UserErrors []userError  `json:"userErrors"`
		} `json:"companyCreate"`
	}
	if err := c.do(ctx, "companyCreate", companyCreateMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if err := checkUserErrors("companyCreate", out.CompanyCreate.UserErrors); err != nil {
		return nil, err
	}
	if out.CompanyCreate.Company == nil {
		return nil, missingObject("companyCreate", "company")
	}
	return out.CompanyCreate.Company.company(), nil
}

const companyUpdateMutation = `mutation companyUpdate($companyId: ID!, $input: CompanyInput!) {
  companyUpdate(companyId: $companyId, input: $input) {
    company {` + companyFields + `
    }
    userErrors { field message code }
  }
}`

func (c *Client) UpdateCompany(ctx context.Context, id string, input CompanyInput) (*Company, error) {
	var out struct {
		CompanyUpdate struct {
			Company    *companyNode `json:"company"`
			UserErrors []userError  `json:"userErrors"`
		} `json:"companyUpdate"`
	}
	vars := map[string]interface{}{"companyId": id, "input": input}
	if err := c.do(ctx, "companyUpdate", companyUpdateMutation, vars, &out); err != nil {
		return nil, err
	}
	if err := checkUserErrors("companyUpdate", out.CompanyUpdate.UserErrors); err != nil {
		return nil, err
	}
	if out.CompanyUpdate.Company == nil {
		return nil, missingObject("companyUpdate", "company")
	}
	return out.CompanyUpdate.Company.company(), nil
}

const companyRolesQuery = `query companyRoles($companyId: ID!) {
  company(id: $companyId) {
    defaultRole { id name }
    contactRoles(first: 25) { nodes { id name } }
  }
}`

func (c *Client) GetCompanyRoles(ctx context.Context, companyID string) (*CompanyRoles, error) {
	var out struct {
		Company *struct {
			DefaultRole  *Role `json:"defaultRole"`
			ContactRoles struct {
				Nodes []Role `json:"nodes"`
			} `json:"contactRoles"`
		} `json:"company"`
	}
	if err := c.do(ctx, "companyRoles", companyRolesQuery, map[string]interface{}{"companyId": companyID}, &out); err != nil {
		return nil, err
	}
	if out.Company == nil {
		return &CompanyRoles{}, nil
	}
	return &CompanyRoles{DefaultRole: out.Company.DefaultRole, ContactRoles: out.Company.ContactRoles.Nodes}, nil
}

const assignRolesMutation = `mutation companyContactAssignRoles($contactId: ID!, $roleId: ID!, $locationId: ID!) {
  companyContactAssignRoles(
    companyContactId: $contactId,
    rolesToAssign: [{ companyContactRoleId: $roleId, companyLocationId: $locationId }]
  ) {
    roleAssignments { id role { id } companyLocation { id } }
    userErrors { field message code }
  }
}`

// AssignContactRole grants roleID to a company contact, scoped to one location.
func (c *Client) AssignContactRole(ctx context.Context, contactID, roleID, locationID string) (*RoleAssignment, error) {
	var out struct {
		CompanyContactAssignRoles struct {
			RoleAssignments []struct {
				ID   string `json:"id"`
				Role struct {
					ID string `json:"id"`
				} `json:"role"`
				CompanyLocation struct {
					ID string `json:"id"`
				} `json:"companyLocation"`
			} `json:"roleAssignments"`
			UserErrors []userError `json:"userErrors"`
		} `json:"companyContactAssignRoles"`
	}
	vars := map[string]interface{}{"contactId": contactID, "roleId": roleID, "locationId": locationID}
	if err := c.do(ctx, "companyContactAssignRoles", assignRolesMutation, vars, &out); err != nil {
		return nil, err
	}
	payload := out.CompanyContactAssignRoles
	if err := checkUserErrors("companyContactAssignRoles", payload.UserErrors); err != nil {
		return nil, err
	}
	if len(payload.RoleAssignments) == 0 {
		return nil, missingObject("companyContactAssignRoles", "roleAssignments")
	}
	ra := payload.RoleAssignments[0]
	return &RoleAssignment{ID: ra.ID, RoleID: ra.Role.ID, LocationID: ra.CompanyLocation.ID}, nil
}

const assignCustomerAsContactMutation = `mutation companyAssignCustomerAsContact($companyId: ID!, $customerId: ID!) {
  companyAssignCustomerAsContact(companyId: $companyId, customerId: $customerId) {
    companyContact { id }
    userErrors { field message code }
  }
}`

// AssignCustomerAsContact makes a customer a contact of the company and
// returns the new company contact id.
func (c *Client) AssignCustomerAsContact(ctx context.Context, companyID, customerID string) (string, error) {
	var out struct {
		CompanyAssignCustomerAsContact struct {
			CompanyContact *struct {
				ID string `json:"id"`
			} `json:"companyContact"`
			UserErrors []userError `json:"userErrors"`
		} `json:"companyAssignCustomerAsContact"`
	}
	vars := map[string]interface{}{"companyId": companyID, "customerId": customerID}
	if err := c.do(ctx, "companyAssignCustomerAsContact", assignCustomerAsContactMutation, vars, &out); err != nil {
		return "", err
	}
	payload := out.CompanyAssignCustomerAsContact
	if err := checkUserErrors("companyAssignCustomerAsContact", payload.UserErrors); err != nil {
		return "", err
	}
	if payload.CompanyContact == nil {
		return "", missingObject("companyAssignCustomerAsContact", "companyContact")
	}
	return payload.CompanyContact.ID, nil
}

const assignMainContactMutation = `mutation companyAssignMainContact($companyId: ID!, $companyContactId: ID!) {
  companyAssignMainContact(companyId: $companyId, companyContactId: $companyContactId) {
    company { id mainContact { id } }
    userErrors { field message code }
  }
}`

func (c *Client) AssignMainContact(ctx context.Context, companyID, contactID string) error {
	var out struct {
		CompanyAssignMainContact struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"companyAssignMainContact"`
	}
	vars := map[string]interface{}{"companyId": companyID, "companyContactId": contactID}
	if err := c.do(ctx, "companyAssignMainContact", assignMainContactMutation, vars, &out); err != nil {
		return err
	}
	return checkUserErrors("companyAssignMainContact", out.CompanyAssignMainContact.UserErrors)
}
