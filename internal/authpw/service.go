// Package authpw provides email/password sign-in for company, client and
// staff accounts.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"sitebook/api/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountStore is the slice of the persistence layer auth needs.
type AccountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	CreateAccount(ctx context.Context, account store.Account) error
}

type Service struct {
	store AccountStore
}

func NewService(accounts AccountStore) *Service {
	return &Service{store: accounts}
}

// SignIn verifies credentials and returns the account. Unknown email and bad
// password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Account, error) {
	if email == "" || password == "" {
		return store.Account{}, ErrInvalidCredentials
	}

	account, err := s.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return store.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, account store.Account, password string) error {
	if account.Email == "" || len(password) < 8 {
		return errors.New("email and a password of at least 8 characters are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}
