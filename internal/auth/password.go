// Package auth provides password registration/verification and JWT
// session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"splitledger/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// UserStore is the persistence surface the authenticator needs.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
}

// PasswordAuthenticator implements registration and sign-in with
// bcrypt-hashed passwords and UUID user identifiers.
type PasswordAuthenticator struct {
	store UserStore
}

func NewPasswordAuthenticator(store UserStore) *PasswordAuthenticator {
	return &PasswordAuthenticator{store: store}
}

// ValidateCredential checks that the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new user account with a hashed password. Duplicate
// names or emails surface as core.ErrNameExists / core.ErrEmailExists
// from the store.
func (a *PasswordAuthenticator) Register(ctx context.Context, name, email, credential string) (core.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" {
		return core.User{}, errors.New("name and email are required")
	}
	if err := a.ValidateCredential(credential); err != nil {
		return core.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return core.User{}, err
	}
	return user, nil
}

// Authenticate verifies email and password, returning the user if valid.
// Lookup failures and bad passwords collapse into ErrInvalidCredentials.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (core.User, error) {
	user, err := a.store.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return user, nil
}
