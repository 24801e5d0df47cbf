package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu          sync.RWMutex
	customers   map[string]Customer
	quotes      map[string]Quote
	leads       map[string]Lead
	messages    map[string]Message
	snaps       []RatesSnapshot
	settings    map[string]string
	users       map[string]User
	tokens      map[string]Token
	rules       []CasbinRule
	emailConfig *EmailConfig
	jobs        map[string]ScheduledJob
	locks       map[int64]bool
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		customers: make(map[string]Customer),
		quotes:    make(map[string]Quote),
		leads:     make(map[string]Lead),
		messages:  make(map[string]Message),
		settings:  make(map[string]string),
		users:     make(map[string]User),
		tokens:    make(map[string]Token),
		jobs:      make(map[string]ScheduledJob),
		locks:     make(map[int64]bool),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Submissions

func (m *MemoryStorage) CreateSubmission(ctx context.Context, sub Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[sub.Customer.ID] = sub.Customer
	if sub.Quote != nil {
		q := *sub.Quote
		q.Inputs = cloneBytes(q.Inputs)
		q.Breakdown = cloneBytes(q.Breakdown)
		m.quotes[q.ID] = q
	}
	if sub.Message != nil {
		m.messages[sub.Message.ID] = *sub.Message
	}
	m.leads[sub.Lead.ID] = sub.Lead
	return nil
}

// Customers

func (m *MemoryStorage) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStorage) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	m.mu.RLock()
	out := make([]Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

// Quotes

func (m *MemoryStorage) GetQuote(ctx context.Context, id string) (*Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, nil
	}
	q.Inputs = cloneBytes(q.Inputs)
	q.Breakdown = cloneBytes(q.Breakdown)
	return &q, nil
}

// Leads

func (m *MemoryStorage) GetLead(ctx context.Context, id string) (*Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *MemoryStorage) ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error) {
	m.mu.RLock()
	var out []Lead
	for _, l := range m.leads {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Source != "" && l.Source != f.Source {
			continue
		}
		out = append(out, l)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (m *MemoryStorage) UpdateLead(ctx context.Context, lead Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[lead.ID]; !ok {
		return ErrNotFound
	}
	m.leads[lead.ID] = lead
	return nil
}

func (m *MemoryStorage) ListStaleLeads(ctx context.Context, createdBefore time.Time) ([]Lead, error) {
	m.mu.RLock()
	var out []Lead
	for _, l := range m.leads {
		if l.Status == LeadStatusNew && l.CreatedAt.Before(createdBefore) {
			out = append(out, l)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) MarkLeadsReminded(ctx context.Context, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if l, ok := m.leads[id]; ok {
			ts := at
			l.RemindedAt = &ts
			m.leads[id] = l
		}
	}
	return nil
}

// Messages

func (m *MemoryStorage) GetMessage(ctx context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (m *MemoryStorage) ListMessages(ctx context.Context, unreadOnly bool) ([]Message, error) {
	m.mu.RLock()
	var out []Message
	for _, msg := range m.messages {
		if unreadOnly && msg.Read {
			continue
		}
		out = append(out, msg)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) SetMessageRead(ctx context.Context, id string, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Read = read
	m.messages[id] = msg
	return nil
}

func (m *MemoryStorage) DeleteMessage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[id]; !ok {
		return ErrNotFound
	}
	delete(m.messages, id)
	return nil
}

// Rates snapshots

func (m *MemoryStorage) GetLatestRatesSnapshot(ctx context.Context) (*RatesSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.snaps) == 0 {
		return nil, nil
	}
	s := m.snaps[len(m.snaps)-1]
	s.Payload = cloneBytes(s.Payload)
	return &s, nil
}

func (m *MemoryStorage) ListRatesSnapshots(ctx context.Context, limit int) ([]RatesSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RatesSnapshot, 0, len(m.snaps))
	for i := len(m.snaps) - 1; i >= 0; i-- {
		out = append(out, m.snaps[i])
	}
	return page(out, limit, 0), nil
}

func (m *MemoryStorage) SaveRatesSnapshot(ctx context.Context, snap RatesSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.PublishedAt.IsZero() {
		snap.PublishedAt = time.Now()
	}
	snap.ID = uint(len(m.snaps) + 1)
	snap.Payload = cloneBytes(snap.Payload)
	m.snaps = append(m.snaps, snap)
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		now := time.Now()
		t.LastUsedAt = &now
		m.tokens[id] = t
	}
	return nil
}

// Casbin rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CasbinRule(nil), m.rules...), nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = uint(len(m.rules) + 1)
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rules[:0]
	for _, r := range m.rules {
		r2 := r
		r2.ID = 0
		if r2 == rule {
			continue
		}
		kept = append(kept, r)
	}
	m.rules = kept
	return nil
}

// Email config

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.emailConfig == nil {
		return nil, nil
	}
	cfg := *m.emailConfig
	return &cfg, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if config.ID == "" {
		config.ID = "default"
	}
	m.emailConfig = &config
	return nil
}

// Scheduled jobs & locking

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.locks[key]
	delete(m.locks, key)
	return held, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = newScheduledJob(name, started, dur, success, errMsg)
	return nil
}

func (m *MemoryStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func newScheduledJob(name string, started time.Time, dur time.Duration, success bool, errMsg string) ScheduledJob {
	status := 0
	if success {
		status = 1
	}
	return ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
