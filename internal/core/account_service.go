package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/scholamates/neuralearn-server/internal/auth"
	"github.com/scholamates/neuralearn-server/internal/store"
)

// ErrInvalidCredentials is returned for a signin with a wrong email or
// password. Callers must not distinguish which.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountService handles signup, signin, profile personalization, and
// feedback submission.
type AccountService struct {
	store  *store.SQLiteStore
	tokens *auth.TokenService
	log    *logrus.Logger
}

func NewAccountService(st *store.SQLiteStore, tokens *auth.TokenService, log *logrus.Logger) *AccountService {
	return &AccountService{store: st, tokens: tokens, log: log}
}

// Signup validates the pairing code, creates the user with a bcrypt-hashed
// credential and an auto-confirmed email, creates the profile, and claims
// the code. The store performs those writes in one transaction.
func (s *AccountService) Signup(ctx context.Context, username, email, password, deviceCode string) (*store.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateUserWithProfile(ctx, username, email, hash, deviceCode)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"device":  deviceCode,
	}).Info("user signed up")
	return user, nil
}

// Signin checks the credential and returns a signed session token.
func (s *AccountService) Signin(ctx context.Context, email, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.IssueSession(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return token, user, nil
}

// GetUser resolves a session subject to a user record.
func (s *AccountService) GetUser(ctx context.Context, userID string) (*store.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// GetProfile returns the user's personalization settings.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// UpdatePersonalization writes the personalization fields from the
// settings pages.
func (s *AccountService) UpdatePersonalization(ctx context.Context, profile *store.Profile) error {
	return s.store.UpdateProfile(ctx, profile)
}

// SubmitFeedback records a feedback message from the contact form.
func (s *AccountService) SubmitFeedback(ctx context.Context, name, email, message string) error {
	if _, err := s.store.CreateFeedback(ctx, name, email, message); err != nil {
		return err
	}
	return nil
}
