// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// Two identity paths land here: email/password (Register/Login) and Google
// sign-in (LoginWithGoogle). Both end the same way — a user record and a
// session JWT bundled in an AuthResult.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/auth"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository"
)

// MinPasswordLength is the minimum accepted password length for new accounts.
const MinPasswordLength = 8

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	events    repository.EventRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	events repository.EventRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		events:    events,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by authentication operations.
// It bundles the user record and the issued JWT together so the caller
// (the HTTP handler) can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Session is the payload behind GET /auth/me: the account plus the IDs of
// every event the user currently belongs to. The joined set is always
// derived from the attendee records, never stored on the user.
type Session struct {
	User           *model.User `json:"user"`
	JoinedEventIDs []string    `json:"joinedEventIds"`
}

// Register creates a new email/password account and signs it in.
//
// Returns apperror.ErrValidation for a malformed email or short password,
// and apperror.ErrConflict if the email is already claimed.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if len(req.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.issueSession(user)
}

// Login authenticates an email/password account.
//
// A wrong password and an unknown email both come back as the same
// Unauthorized error — the response must not reveal which emails have
// accounts.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*AuthResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	// Accounts created via Google sign-in have no password hash.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, req.Password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.issueSession(user)
}

// LoginWithGoogle handles a verified Google identity, from either the code
// flow callback or a client-supplied ID token.
//
// The profile is upserted by email: first sign-in creates the account,
// later ones refresh name, avatar, and Google subject ID. An existing
// email/password account with the same address is linked, not duplicated.
func (s *AuthService) LoginWithGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	email, err := normalizeEmail(gUser.Email)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:      gUser.Name,
		Email:     email,
		AvatarURL: gUser.Picture,
		GoogleID:  gUser.Sub,
	}

	if err := s.users.UpsertGoogle(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting Google user: %w", err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.issueSession(user)
}

// Me returns the session view for an authenticated user: the account record
// and the IDs of the events they've joined.
func (s *AuthService) Me(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	joined, err := s.events.JoinedEventIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading joined events for %s: %w", userID, err)
	}
	if joined == nil {
		joined = []string{}
	}

	return &Session{
		User:           user,
		JoinedEventIDs: joined,
	}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	return s.users.GetByID(ctx, id)
}

// ValidateToken validates a JWT string and returns the userID it encodes.
//
// This is a thin delegation to TokenService.Validate. Having it on
// AuthService means callers only need to import the service package, not
// the auth package directly.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

func (s *AuthService) issueSession(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperror.ValidationFailed("email", "email address is not valid")
	}
	return email, nil
}
