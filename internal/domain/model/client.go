package model

import (
	"strings"
	"time"
)

// Client fields that can be edited one at a time.
const (
	ClientFieldName    = "name"
	ClientFieldPhone   = "phone"
	ClientFieldEmail   = "email"
	ClientFieldAddress = "address"
)

var ClientFields = []string{ClientFieldName, ClientFieldPhone, ClientFieldEmail, ClientFieldAddress}

type Client struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	UserID    int64     `json:"user_id"`
	Reference string    `json:"reference"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientDraft struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

// Matches is a case-insensitive substring test over name, email, phone and reference.
func (c *Client) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, v := range []string{c.Name, deref(c.Email), c.Phone, c.Reference} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Field returns the display value of an editable field.
func (c *Client) Field(name string) string {
	switch name {
	case ClientFieldName:
		return c.Name
	case ClientFieldPhone:
		return c.Phone
	case ClientFieldEmail:
		return deref(c.Email)
	case ClientFieldAddress:
		return deref(c.Address)
	}
	return ""
}

// SetField overwrites one editable field; empty values clear optional fields.
func (c *Client) SetField(name, value string) bool {
	switch name {
	case ClientFieldName:
		c.Name = value
	case ClientFieldPhone:
		c.Phone = value
	case ClientFieldEmail:
		c.Email = optional(value)
	case ClientFieldAddress:
		c.Address = optional(value)
	default:
		return false
	}
	return true
}

func IsClientField(name string) bool {
	for _, f := range ClientFields {
		if f == name {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
