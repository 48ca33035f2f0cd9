package services

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/maat/internal/models"
)

type authStubStore struct {
	users map[string]*models.User
}

func newAuthStubStore() *authStubStore {
	return &authStubStore{users: map[string]*models.User{}}
}

func (s *authStubStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.users[email]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, nil
}

func (s *authStubStore) AddUser(_ context.Context, u *models.User) error {
	if _, ok := s.users[u.Email]; ok {
		return models.ErrConflict
	}
	copy := *u
	s.users[u.Email] = &copy
	return nil
}

func TestAuthCreateAndLogin(t *testing.T) {
	store := newAuthStubStore()
	svc := NewAuthService(store, func(uid, email string, ttl time.Duration) (string, error) {
		return "token:" + uid + ":" + email, nil
	}, time.Hour)
	svc.now = func() time.Time { return time.Unix(0, 0) }
	svc.idGen = func() string { return "u1" }
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	u, err := svc.CreateResearcher(ctx, " Lab@Example.com ", "Secret123")
	if err != nil {
		t.Fatalf("CreateResearcher: %v", err)
	}
	if u.Email != "lab@example.com" || u.Role != models.RoleResearcher {
		t.Fatalf("user = %+v", u)
	}
	if _, err := svc.CreateResearcher(ctx, "lab@example.com", "Secret123"); err == nil {
		t.Fatalf("expected conflict")
	} else if se, ok := AsServiceError(err); !ok || se.Code != ErrorConflict {
		t.Fatalf("err = %v", err)
	}

	res, err := svc.Login(ctx, "LAB@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "token:u1:lab@example.com" || res.UserID != "u1" {
		t.Fatalf("result = %+v", res)
	}
	if svc.TokenTTL() != time.Hour {
		t.Fatalf("ttl = %v", svc.TokenTTL())
	}

	if _, err := svc.Login(ctx, "lab@example.com", "wrong"); err == nil {
		t.Fatalf("expected unauthorized")
	} else if se, ok := AsServiceError(err); !ok || se.Code != ErrorUnauthorized {
		t.Fatalf("err = %v", err)
	}
}

func TestAuthValidation(t *testing.T) {
	svc := NewAuthService(newAuthStubStore(), nil, 0)
	_, err := svc.CreateResearcher(context.Background(), "nope", "short")
	se, ok := AsServiceError(err)
	if !ok || se.Fields["email"] == "" || se.Fields["password"] == "" {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Login(context.Background(), "", ""); err == nil {
		t.Fatalf("expected invalid")
	}
}

func TestAuthParticipantAccountCannotLogin(t *testing.T) {
	store := newAuthStubStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	store.users["p@example.com"] = &models.User{ID: "p", Email: "p@example.com", PassHash: hash, Role: models.RoleParticipant}
	svc := NewAuthService(store, func(string, string, time.Duration) (string, error) { return "t", nil }, time.Hour)
	if _, err := svc.Login(context.Background(), "p@example.com", "Secret123"); err == nil {
		t.Fatalf("participant account logged in")
	}
}
