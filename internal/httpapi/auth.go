package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
)

var errInvalidCredentials = errors.New("invalid username or password")

// AuthManager issues and validates the signed tokens used by the HTTP API.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    store.Repository
}

type posClaims struct {
	jwtlib.RegisteredClaims
	Role    string `json:"role"`
	StoreID string `json:"store_id,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users store.Repository) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
	}
}

func (m *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	account, err := m.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return domain.LoginResponse{}, fmt.Errorf("lookup user: %w", err)
	}
	if !account.Active {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)) != nil {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	expiresAt := time.Now().Add(m.tokenTTL)
	token, err := m.sign(*account, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        account.Role,
		StoreID:     account.StoreID,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (m *AuthManager) sign(account domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "retailpos",
			Subject:   account.ID,
			ID:        account.Username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role:    account.Role,
		StoreID: account.StoreID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken validates a bearer token and returns the acting user.
func (m *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}
	if !domain.IsValidRole(claims.Role) {
		return domain.Actor{}, errors.New("unknown role in token")
	}

	return domain.Actor{
		UserID:   claims.Subject,
		Username: claims.ID,
		Role:     claims.Role,
		StoreID:  claims.StoreID,
	}, nil
}
