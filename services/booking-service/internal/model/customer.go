package model

import "strings"

type Customer struct {
	ID        string
	TenantID  string
	Name      string
	Phone     string
	Email     string
	Anonymous bool
}

// CustomerIdentity is what a caller supplies at commit time: an existing id, or inline
// details for lookup-or-create by phone.
type CustomerIdentity struct {
	CustomerID string
	Name       string
	Phone      string
	Email      string
}

func (c CustomerIdentity) Normalize() CustomerIdentity {
	return CustomerIdentity{
		CustomerID: strings.TrimSpace(c.CustomerID),
		Name:       strings.TrimSpace(c.Name),
		Phone:      NormalizePhone(c.Phone),
		Email:      strings.ToLower(strings.TrimSpace(c.Email)),
	}
}

// NormalizePhone keeps digits and a leading '+'.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
