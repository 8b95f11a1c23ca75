package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass-1")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass-1")
	return NewAuthManager(testSecret, time.Hour, memory.NewSeeded())
}

func TestLoginIssuesParsableToken(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "cashier", Password: "cashier-pass-1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleCashier {
		t.Fatalf("expected cashier role, got %s", resp.Role)
	}
	if resp.StoreID != memory.DefaultStoreID {
		t.Fatalf("expected store %s, got %s", memory.DefaultStoreID, resp.StoreID)
	}
	if _, err := time.Parse(time.RFC3339, resp.ExpiresAt); err != nil {
		t.Fatalf("expires_at not RFC3339: %v", err)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "cashier" || actor.Role != domain.RoleCashier || actor.StoreID != memory.DefaultStoreID {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if actor.UserID == "" {
		t.Fatalf("expected user id in token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "cashier", Password: "wrong"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "ghost", Password: "whatever"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "", Password: ""}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for empty request, got %v", err)
	}
}

func TestParseTokenRejectsForgedToken(t *testing.T) {
	auth := newTestAuth(t)
	other := NewAuthManager("another-secret-that-is-32-chars!", time.Hour, memory.NewSeeded())

	resp, err := other.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin-pass-1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}

func TestParseTokenRejectsExpiredToken(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass-1")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass-1")
	repo := memory.NewSeeded()
	auth := &AuthManager{secret: []byte(testSecret), tokenTTL: time.Hour, users: repo}

	account, err := repo.GetUserByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("seed lookup failed: %v", err)
	}
	token, err := auth.sign(*account, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
