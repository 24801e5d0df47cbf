package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "open %s database", driver)
	}

	return &GormStorage{db: db}, nil
}

// Migrate creates or updates every table from the model structs. Deployments
// that manage schema with goose can skip this.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Customer{},
		&Quote{},
		&Lead{},
		&Message{},
		&RatesSnapshot{},
		&Setting{},
		&User{},
		&Token{},
		&CasbinRule{},
		&EmailConfig{},
		&ScheduledJob{},
	)
}

// first loads a single row into dst, mapping not-found to (false, nil).
func (s *GormStorage) first(ctx context.Context, dst any, query string, args ...any) (bool, error) {
	result := s.db.WithContext(ctx).First(dst, append([]any{query}, args...)...)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, result.Error
	}
	return true, nil
}

// Submissions

func (s *GormStorage) CreateSubmission(ctx context.Context, sub Submission) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub.Customer).Error; err != nil {
			return eris.Wrap(err, "insert customer")
		}
		if sub.Quote != nil {
			if err := tx.Create(sub.Quote).Error; err != nil {
				return eris.Wrap(err, "insert quote")
			}
		}
		if sub.Message != nil {
			if err := tx.Create(sub.Message).Error; err != nil {
				return eris.Wrap(err, "insert message")
			}
		}
		if err := tx.Create(&sub.Lead).Error; err != nil {
			return eris.Wrap(err, "insert lead")
		}
		return nil
	})
	return eris.Wrap(err, "create submission")
}

// Customers

func (s *GormStorage) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	ok, err := s.first(ctx, &c, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &c, nil
}

func (s *GormStorage) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	var customers []Customer
	q := s.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return customers, q.Find(&customers).Error
}

// Quotes

func (s *GormStorage) GetQuote(ctx context.Context, id string) (*Quote, error) {
	var q Quote
	ok, err := s.first(ctx, &q, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &q, nil
}

// Leads

func (s *GormStorage) GetLead(ctx context.Context, id string) (*Lead, error) {
	var l Lead
	ok, err := s.first(ctx, &l, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &l, nil
}

func (s *GormStorage) ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error) {
	var leads []Lead
	q := s.db.WithContext(ctx).Order("created_at desc")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	return leads, q.Find(&leads).Error
}

func (s *GormStorage) UpdateLead(ctx context.Context, lead Lead) error {
	result := s.db.WithContext(ctx).Model(&Lead{}).Where("id = ?", lead.ID).Updates(map[string]any{
		"status":     lead.Status,
		"notes":      lead.Notes,
		"updated_at": lead.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStorage) ListStaleLeads(ctx context.Context, createdBefore time.Time) ([]Lead, error) {
	var leads []Lead
	result := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", LeadStatusNew, createdBefore).
		Order("created_at asc").
		Find(&leads)
	return leads, result.Error
}

func (s *GormStorage) MarkLeadsReminded(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Lead{}).Where("id IN ?", ids).Update("reminded_at", at).Error
}

// Messages

func (s *GormStorage) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	ok, err := s.first(ctx, &msg, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &msg, nil
}

func (s *GormStorage) ListMessages(ctx context.Context, unreadOnly bool) ([]Message, error) {
	var msgs []Message
	q := s.db.WithContext(ctx).Order("created_at desc")
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	return msgs, q.Find(&msgs).Error
}

func (s *GormStorage) SetMessageRead(ctx context.Context, id string, read bool) error {
	result := s.db.WithContext(ctx).Model(&Message{}).Where("id = ?", id).Update("read", read)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStorage) DeleteMessage(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Message{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rates snapshots

func (s *GormStorage) GetLatestRatesSnapshot(ctx context.Context) (*RatesSnapshot, error) {
	var snap RatesSnapshot
	result := s.db.WithContext(ctx).Order("published_at desc").Order("id desc").First(&snap)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &snap, nil
}

func (s *GormStorage) ListRatesSnapshots(ctx context.Context, limit int) ([]RatesSnapshot, error) {
	var snaps []RatesSnapshot
	q := s.db.WithContext(ctx).Order("published_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return snaps, q.Find(&snaps).Error
}

func (s *GormStorage) SaveRatesSnapshot(ctx context.Context, snap RatesSnapshot) error {
	if snap.PublishedAt.IsZero() {
		snap.PublishedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&snap).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	ok, err := s.first(ctx, &setting, "key = ?", key)
	if !ok {
		return "", err
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Create(&user).Error
}

func (s *GormStorage) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	ok, err := s.first(ctx, &user, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &user, nil
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	ok, err := s.first(ctx, &user, "username = ?", username)
	if !ok {
		return nil, err
	}
	return &user, nil
}

func (s *GormStorage) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	result := s.db.WithContext(ctx).Find(&users)
	return users, result.Error
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	ok, err := s.first(ctx, &token, "token_hash = ?", hash)
	if !ok {
		return nil, err
	}
	return &token, nil
}

func (s *GormStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	var tokens []Token
	result := s.db.WithContext(ctx).Find(&tokens, "user_id = ?", userID)
	return tokens, result.Error
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Token{}, "id = ?", id).Error
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", now).Error
}

// Casbin Rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Where(&rule).Delete(&CasbinRule{}).Error
}

// Email Config

func (s *GormStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var config EmailConfig
	result := s.db.WithContext(ctx).First(&config)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &config, nil
}

func (s *GormStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default" // single row
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&config).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Scheduled Jobs & Locking

func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&ok).Error
		return ok, err
	}
	// SQLite has no advisory locks; a single instance always wins.
	return true, nil
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_advisory_unlock(?)", key).Scan(&ok).Error
		return ok, err
	}
	return true, nil
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	job := newScheduledJob(name, started, dur, success, errMsg)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	var job ScheduledJob
	ok, err := s.first(ctx, &job, "name = ?", name)
	if !ok {
		return nil, err
	}
	return &job, nil
}
