package shopify

import (
	"context"
	"fmt"
	"strings"
)

const customerFields = `id email firstName lastName phone tags`

const customersQuery = `query customers($query: String!) {
  customers(first: 10, query: $query) {
    nodes { ` + customerFields + ` }
  }
}`

// SearchCustomers runs a customer search query and returns the first page.
func (c *Client) SearchCustomers(ctx context.Context, query string) ([]Customer, error) {
	var out struct {
		Customers struct {
			Nodes []Customer `json:"nodes"`
		} `json:"customers"`
	}
	if err := c.do(ctx, "customers", customersQuery, map[string]interface{}{"query": query}, &out); err != nil {
		return nil, err
	}
	return out.Customers.Nodes, nil
}

// FindCustomerByEmail returns the customer whose email equals email,
// ignoring case, or nil.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	want := strings.ToLower(strings.TrimSpace(email))
	if want == "" {
		return nil, nil
	}
	customers, err := c.SearchCustomers(ctx, fmt.Sprintf("email:%q", want))
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if strings.EqualFold(strings.TrimSpace(customers[i].Email), want) {
			return &customers[i], nil
		}
	}
	return nil, nil
}

const customerCreateMutation = `mutation customerCreate($input: CustomerInput!) {
  customerCreate(input: $input) {
    customer { ` + customerFields + ` }
    userErrors { field message }
  }
}`

func (c *Client) CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	var out struct {
		CustomerCreate struct {
			Customer   *Customer   `json:"customer"`
			UserErrors []userError `json:"userErrors"`
		} `json:"customerCreate"`
	}
	if err := c.do(ctx, "customerCreate", customerCreateMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if err := checkUserErrors("customerCreate", out.CustomerCreate.UserErrors); err != nil {
		return nil, err
	}
	if out.CustomerCreate.Customer == nil {
		return nil, missingObject("customerCreate", "customer")
	}
	return out.CustomerCreate.Customer, nil
}

const customerUpdateMutation = `mutation customerUpdate($input: CustomerInput!) {
  customerUpdate(input: $input) {
    customer { ` + customerFields + ` }
    userErrors { field message }
  }
}`

func (c *Client) UpdateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	var out struct {
		CustomerUpdate struct {
			Customer   *Customer   `json:"customer"`
			UserErrors []userError `json:"userErrors"`
		} `json:"customerUpdate"`
	}
	if err := c.do(ctx, "customerUpdate", customerUpdateMutation, map[string]interface{}{"input": input}, &out); err != nil {
		return nil, err
	}
	if err := checkUserErrors("customerUpdate", out.CustomerUpdate.UserErrors); err != nil {
		return nil, err
	}
	if out.CustomerUpdate.Customer == nil {
		return nil, missingObject("customerUpdate", "customer")
	}
	return out.CustomerUpdate.Customer, nil
}

// MergeTags returns existing with tag appended unless already present.
func MergeTags(existing []string, tag string) []string {
	out := make([]string, 0, len(existing)+1)
	found := false
	for _, t := range existing {
		if t == tag {
			found = true
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, tag)
	}
	return out
}
