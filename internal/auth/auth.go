// Package auth handles accounts, password checks and login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	appLog "parkalot/internal/log"
	"parkalot/internal/model"
	"parkalot/internal/store"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an address that already has
	// an account.
	ErrEmailTaken = errors.New("email already registered")
)

// Registration is the data needed to open an account.
type Registration struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Accounts registers and authenticates users.
type Accounts struct {
	store store.Store
	cost  int
	// dummy is compared against when the email is unknown so both failure
	// paths cost one bcrypt comparison.
	dummy []byte
}

// NewAccounts returns Accounts hashing passwords at cost. Out of range costs
// fall back to bcrypt.DefaultCost.
func NewAccounts(st store.Store, cost int) *Accounts {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("parkalot"), cost)
	return &Accounts{store: st, cost: cost, dummy: dummy}
}

// Register creates a user with a hashed password and a fresh feed token.
func (a *Accounts) Register(ctx context.Context, reg Registration) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        strings.TrimSpace(strings.ToLower(reg.Email)),
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: string(hash),
		FeedToken:    NewFeedToken(),
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	appLog.Info("user registered", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// Authenticate returns the user matching email and password.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := a.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// NewFeedToken returns a random token for the calendar feed URL.
func NewFeedToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
