package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/maat/internal/models"
)

type AuthStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	AddUser(ctx context.Context, u *models.User) error
}

// MsgInvalidCredentials is the message key for a failed researcher login.
const MsgInvalidCredentials = "invalid_credentials"

type TokenSigner func(uid, email string, ttl time.Duration) (string, error)

// AuthService manages researcher accounts.
type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
	cost      int
}

type AuthResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func NewAuthService(store AuthStore, signer TokenSigner, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		signToken: signer,
		tokenTTL:  ttl,
		cost:      bcrypt.DefaultCost,
	}
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CreateResearcher adds a researcher account.
func (s *AuthService) CreateResearcher(ctx context.Context, email, password string) (*models.User, error) {
	email = normEmail(email)
	fields := map[string]string{}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "valid email required"
	}
	if len(password) < 8 {
		fields["password"] = "at least 8 characters"
	}
	if err := NewValidationError(fields); err != nil {
		return nil, err
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	u := &models.User{ID: s.idGen(), Email: email, PassHash: hash, Role: models.RoleResearcher, CreatedAt: s.now()}
	if err := s.store.AddUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, NewConflictError("email exists")
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Role != models.RoleResearcher {
		return nil, NewUnauthorizedError(MsgInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError(MsgInvalidCredentials)
	}
	if s.signToken == nil {
		return nil, errors.New("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: u.ID, Email: u.Email}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
