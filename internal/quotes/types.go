package quotes

import (
	"encoding/json"
	"net/mail"
	"strings"

	"github.com/bher20/equotemanager/internal/pricing"
	"github.com/bher20/equotemanager/internal/storage"
)

// CustomerInfo is the contact block of the public forms.
type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address1  string `json:"address1"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

func (c CustomerInfo) trimmed() CustomerInfo {
	return CustomerInfo{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
		Address1:  strings.TrimSpace(c.Address1),
		City:      strings.TrimSpace(c.City),
		State:     strings.TrimSpace(c.State),
		Zip:       strings.TrimSpace(c.Zip),
	}
}

func validateEmail(field, v string) error {
	if v == "" {
		return fieldErr(field, "is required")
	}
	if _, err := mail.ParseAddress(v); err != nil {
		return fieldErr(field, "is not a valid email address")
	}
	return nil
}

// validate checks the fields a quote request needs to be followed up.
func (c CustomerInfo) validate() error {
	required := []struct{ name, value string }{
		{"customerInfo.firstName", c.FirstName},
		{"customerInfo.lastName", c.LastName},
		{"customerInfo.phone", c.Phone},
	}
	for _, f := range required {
		if f.value == "" {
			return fieldErr(f.name, "is required")
		}
	}
	return validateEmail("customerInfo.email", c.Email)
}

func (c CustomerInfo) record(id string) storage.Customer {
	return storage.Customer{
		ID:        id,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Address1:  c.Address1,
		City:      c.City,
		State:     c.State,
		Zip:       c.Zip,
	}
}

// Submission is a quote form post. Variant defaults to residential. Pricing
// is whatever the browser displayed; it is never trusted.
type Submission struct {
	CustomerInfo CustomerInfo    `json:"customerInfo"`
	Variant      pricing.Variant `json:"variant,omitempty"`
	Inputs       json.RawMessage `json:"inputs"`
	Pricing      *pricing.Result `json:"pricing,omitempty"`
}

// Receipt is returned for an accepted submission.
type Receipt struct {
	QuoteID    string
	LeadID     string
	CustomerID string
	Pricing    pricing.Result
}

// ContactMessage is a contact form post.
type ContactMessage struct {
	CustomerInfo CustomerInfo `json:"customerInfo"`
	Subject      string       `json:"subject"`
	Message      string       `json:"message"`
}

// MessageReceipt is returned for an accepted contact message.
type MessageReceipt struct {
	MessageID  string
	LeadID     string
	CustomerID string
}

// LeadUpdate is a partial update from the admin area. Nil fields are left
// unchanged.
type LeadUpdate struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}
