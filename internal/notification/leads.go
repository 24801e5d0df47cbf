package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/bher20/equotemanager/internal/storage"
)

var leadEmail = template.Must(template.New("lead").Parse(`<h2>New {{.Source}} lead</h2>
<p><strong>{{.Customer.FirstName}} {{.Customer.LastName}}</strong><br>
{{.Customer.Email}}<br>
{{.Customer.Phone}}{{if .Customer.Address1}}<br>
{{.Customer.Address1}}, {{.Customer.City}} {{.Customer.State}} {{.Customer.Zip}}{{end}}</p>
{{if .Quote}}<p>{{.Service}} estimate: <strong>${{.Quote.PriceMin}} - ${{.Quote.PriceMax}}</strong></p>{{end}}
{{if .Message}}<blockquote>{{.Message.Body}}</blockquote>{{end}}
<p>Lead ID: {{.Lead.ID}}</p>
`))

var digestEmail = template.Must(template.New("digest").Parse(`<h2>{{len .Leads}} lead(s) waiting for follow-up</h2>
<p>These leads are still marked new after {{.After}}.</p>
<ul>
{{range .Leads}}<li>{{.ID}} ({{.Source}}) received {{.CreatedAt.Format "Jan 2 15:04"}}</li>
{{end}}</ul>
`))

// LeadEmail is the data behind a new-lead notification.
type LeadEmail struct {
	Lead     storage.Lead
	Customer storage.Customer
	Quote    *storage.Quote
	Message  *storage.Message
}

func (e LeadEmail) Source() string {
	if e.Lead.Source == storage.LeadSourceContactForm {
		return "contact form"
	}
	return "quote"
}

func (e LeadEmail) Service() string {
	if e.Quote != nil && e.Quote.Variant == "com" {
		return "Commercial"
	}
	return "Residential"
}

// RenderLeadEmail returns the subject and HTML body for a new-lead email.
func RenderLeadEmail(e LeadEmail) (string, string, error) {
	var buf bytes.Buffer
	if err := leadEmail.Execute(&buf, e); err != nil {
		return "", "", err
	}
	subject := fmt.Sprintf("New lead: %s %s", e.Customer.FirstName, e.Customer.LastName)
	return subject, buf.String(), nil
}

// RenderDigestEmail returns the subject and HTML body for a stale-lead digest.
func RenderDigestEmail(leads []storage.Lead, after time.Duration) (string, string, error) {
	var buf bytes.Buffer
	err := digestEmail.Execute(&buf, struct {
		Leads []storage.Lead
		After time.Duration
	}{leads, after})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("%d lead(s) need follow-up", len(leads)), buf.String(), nil
}

// NotifyNewLead emails the business about a new lead.
func (s *Service) NotifyNewLead(ctx context.Context, to string, e LeadEmail) error {
	subject, body, err := RenderLeadEmail(e)
	if err != nil {
		return err
	}
	// Replies go straight to the customer.
	return s.deliver(ctx, message{To: to, ReplyTo: e.Customer.Email, Subject: subject, HTML: body})
}

// SendDigest emails the list of stale leads.
func (s *Service) SendDigest(ctx context.Context, to string, leads []storage.Lead, after time.Duration) error {
	subject, body, err := RenderDigestEmail(leads, after)
	if err != nil {
		return err
	}
	return s.SendEmail(ctx, to, subject, body)
}
