package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by updates and deletes that target a missing row.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("storage: record not found")

// Storage abstracts persistence for quotes, leads and the admin area.
type Storage interface {
	// Submissions
	CreateSubmission(ctx context.Context, sub Submission) error

	// Customers
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error)

	// Quotes
	GetQuote(ctx context.Context, id string) (*Quote, error)

	// Leads
	GetLead(ctx context.Context, id string) (*Lead, error)
	ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error)
	UpdateLead(ctx context.Context, lead Lead) error
	ListStaleLeads(ctx context.Context, createdBefore time.Time) ([]Lead, error)
	MarkLeadsReminded(ctx context.Context, ids []string, at time.Time) error

	// Messages
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, unreadOnly bool) ([]Message, error)
	SetMessageRead(ctx context.Context, id string, read bool) error
	DeleteMessage(ctx context.Context, id string) error

	// Rates snapshots
	GetLatestRatesSnapshot(ctx context.Context) (*RatesSnapshot, error)
	ListRatesSnapshots(ctx context.Context, limit int) ([]RatesSnapshot, error)
	SaveRatesSnapshot(ctx context.Context, snap RatesSnapshot) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Scheduled jobs & locking
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}
