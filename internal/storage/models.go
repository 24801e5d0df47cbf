package storage

import "time"

// Lead statuses. A lead starts as new and moves through the pipeline from
// the admin area.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusScheduled = "scheduled"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
)

// Lead sources.
const (
	LeadSourceQuoteForm   = "quote_form"
	LeadSourceContactForm = "contact_form"
)

// Customer is the person who filled in a quote or contact form.
type Customer struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	FirstName string    `json:"firstName" gorm:"column:first_name"`
	LastName  string    `json:"lastName" gorm:"column:last_name"`
	Email     string    `json:"email" gorm:"column:email;index"`
	Phone     string    `json:"phone" gorm:"column:phone"`
	Address1  string    `json:"address1,omitempty" gorm:"column:address1"`
	City      string    `json:"city,omitempty" gorm:"column:city"`
	State     string    `json:"state,omitempty" gorm:"column:state"`
	Zip       string    `json:"zip,omitempty" gorm:"column:zip"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

// Quote is a priced estimate. Inputs and Breakdown hold the JSON documents
// exactly as they were priced.
type Quote struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	CustomerID   string    `json:"customer_id" gorm:"column:customer_id;index"`
	Variant      string    `json:"variant" gorm:"column:variant"`
	Inputs       []byte    `json:"inputs" gorm:"column:inputs"`
	PriceMin     int64     `json:"priceMin" gorm:"column:price_min"`
	PriceMax     int64     `json:"priceMax" gorm:"column:price_max"`
	Breakdown    []byte    `json:"breakdown" gorm:"column:breakdown"`
	RatesVersion string    `json:"rates_version,omitempty" gorm:"column:rates_version"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

// Lead tracks follow-up on a submission.
type Lead struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	CustomerID string     `json:"customer_id" gorm:"column:customer_id;index"`
	QuoteID    string     `json:"quote_id,omitempty" gorm:"column:quote_id"`
	MessageID  string     `json:"message_id,omitempty" gorm:"column:message_id"`
	Source     string     `json:"source" gorm:"column:source"`
	Status     string     `json:"status" gorm:"column:status;index"`
	Notes      string     `json:"notes,omitempty" gorm:"column:notes"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"column:updated_at"`
	RemindedAt *time.Time `json:"reminded_at,omitempty" gorm:"column:reminded_at"`
}

// Message is a contact form submission.
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;column:id"`
	CustomerID string    `json:"customer_id" gorm:"column:customer_id"`
	Subject    string    `json:"subject,omitempty" gorm:"column:subject"`
	Body       string    `json:"body" gorm:"column:body"`
	Read       bool      `json:"read" gorm:"column:read"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
}

// Submission groups the records written by one form post. Quote and Message
// are optional; whichever are set are written together with the customer
// and lead.
type Submission struct {
	Customer Customer
	Quote    *Quote
	Message  *Message
	Lead     Lead
}

// LeadFilter narrows ListLeads. Zero values mean no filter.
type LeadFilter struct {
	Status string
	Source string
	Limit  int
	Offset int
}

// RatesSnapshot stores a published rate document.
type RatesSnapshot struct {
	ID          uint      `json:"-" gorm:"primaryKey;column:id"`
	Version     string    `json:"version" gorm:"column:version;uniqueIndex"`
	Payload     []byte    `json:"payload" gorm:"column:payload"`
	PublishedBy string    `json:"published_by" gorm:"column:published_by"`
	PublishedAt time.Time `json:"published_at" gorm:"column:published_at"`
}

// Setting is a key/value row used for runtime-tunable options.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the outcome of the last run of a background job.
type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error,omitempty" gorm:"column:last_error"`
}

// User represents an admin area user.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash;uniqueIndex"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`       // For Sendgrid
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
