package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bher20/equotemanager/internal/storage"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Roles.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Objects guarded by RBAC.
const (
	ObjLeads    = "leads"
	ObjQuotes   = "quotes"
	ObjMessages = "messages"
	ObjRates    = "rates"
	ObjSettings = "settings"
)

// Actions.
const (
	ActRead  = "read"
	ActWrite = "write"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserExists         = errors.New("user already exists")
	ErrUnknownRole        = errors.New("unknown role")
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

// defaultPolicies: admin does everything, editors work the lead pipeline and
// publish rates, viewers read.
var defaultPolicies = [][]string{
	{RoleAdmin, "*", "*"},
	{RoleEditor, ObjLeads, ActRead},
	{RoleEditor, ObjLeads, ActWrite},
	{RoleEditor, ObjQuotes, ActRead},
	{RoleEditor, ObjMessages, ActRead},
	{RoleEditor, ObjMessages, ActWrite},
	{RoleEditor, ObjRates, ActRead},
	{RoleEditor, ObjRates, ActWrite},
	{RoleViewer, ObjLeads, ActRead},
	{RoleViewer, ObjQuotes, ActRead},
	{RoleViewer, ObjMessages, ActRead},
	{RoleViewer, ObjRates, ActRead},
}

type Service struct {
	storage  storage.Storage
	enforcer *casbin.Enforcer
}

func NewService(s storage.Storage) (*Service, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m, NewAdapter(s))
	if err != nil {
		return nil, eris.Wrap(err, "init casbin enforcer")
	}

	// AddPolicy skips rules that were already loaded from storage.
	for _, p := range defaultPolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, eris.Wrapf(err, "add default policy %v", p)
		}
	}

	return &Service{storage: s, enforcer: e}, nil
}

// ValidRole reports whether role is one of the built-in roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEditor || role == RoleViewer
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	u, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Register(ctx context.Context, username, password, role string) (*storage.User, error) {
	if !ValidRole(role) {
		return nil, ErrUnknownRole
	}
	existing, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := storage.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateUser(ctx, u); err != nil {
		return nil, eris.Wrap(err, "create user")
	}

	if _, err := s.enforcer.AddGroupingPolicy(u.ID, role); err != nil {
		return nil, eris.Wrap(err, "assign role")
	}

	return &u, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateToken issues an API token. The raw value is returned once; only its
// hash is stored.
func (s *Service) CreateToken(ctx context.Context, userID, name, role string, expiresAt *time.Time) (*storage.Token, string, error) {
	if !ValidRole(role) {
		return nil, "", ErrUnknownRole
	}
	rawToken := uuid.New().String() + uuid.New().String()

	t := storage.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		TokenHash: hashToken(rawToken),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	if err := s.storage.CreateToken(ctx, t); err != nil {
		return nil, "", eris.Wrap(err, "create token")
	}

	return &t, rawToken, nil
}

func (s *Service) ValidateToken(ctx context.Context, rawToken string) (*storage.Token, error) {
	t, err := s.storage.GetTokenByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}

	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	go func(id string) {
		if err := s.storage.UpdateTokenLastUsed(context.Background(), id); err != nil {
			zap.L().Warn("auth: update token last used", zap.String("token_id", id), zap.Error(err))
		}
	}(t.ID)

	return t, nil
}

// Enforce checks whether sub may perform act on obj. sub is a user ID or a
// role name.
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	return s.enforcer.Enforce(sub, obj, act)
}
