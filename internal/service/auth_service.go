// Package service holds the domain workflows behind the HTTP layer:
// credential lifecycle, password recovery, and review aggregation.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/mailer"
	"github.com/wanderpeak/tours-api/pkg/auth"
	"github.com/wanderpeak/tours-api/pkg/config"
	"github.com/wanderpeak/tours-api/pkg/events"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

// UserStore is the slice of the user repository the auth workflows need.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByValidResetToken(ctx context.Context, tokenHash string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, id int64, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id int64) error
}

// passwordChangedBackdate keeps tokens minted in the same second as a
// password change valid: iat comparisons run at second precision.
const passwordChangedBackdate = time.Second

type AuthService struct {
	users   UserStore
	mail    mailer.Service
	bus     events.Publisher
	authCfg config.AuthConfig
	baseURL string
}

func NewAuthService(users UserStore, mail mailer.Service, bus events.Publisher, authCfg config.AuthConfig, baseURL string) *AuthService {
	return &AuthService{
		users:   users,
		mail:    mail,
		bus:     bus,
		authCfg: authCfg,
		baseURL: baseURL,
	}
}

// Signup registers a new account and signs it in. The role is always
// "user"; privileged roles are granted by admins after the fact.
func (s *AuthService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Name, req.Email, hash)
	if err != nil {
		return nil, "", err
	}

	// Welcome email and signup event are best-effort; the account exists
	// either way.
	accountURL := s.baseURL + "/me"
	if err := s.mail.SendWelcomeEmail(user.Email, user.Name, accountURL); err != nil {
		logger.WarnContext(ctx, "Failed to send welcome email", "error", err, "user_id", user.ID)
	}
	if err := s.bus.Publish(ctx, events.UserSignedUp, events.UserSignedUpEvent{
		UserID:   user.ID,
		Email:    user.Email,
		SignedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish signup event", "error", err)
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies the credentials and signs a token. Unknown email and
// wrong password share one message so the response never confirms which
// half failed.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", apperr.Unauthenticated("Incorrect email or password")
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return nil, "", apperr.Unauthenticated("Incorrect email or password")
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ForgotPassword issues a single-use reset token and mails it. Only the
// sha256 of the token is stored; the plaintext exists solely in the email.
// If delivery fails the token state is rolled back so the stored hash
// never points at mail nobody received.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.NotFound("There is no user with that email address")
	}

	token, tokenHash, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expires := time.Now().Add(s.authCfg.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, expires); err != nil {
		return err
	}

	resetURL := s.baseURL + "/api/v1/users/reset-password/" + token
	if err := s.mail.SendPasswordResetEmail(user.Email, user.Name, resetURL); err != nil {
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			logger.ErrorContext(ctx, "Failed to roll back reset token", "error", clearErr, "user_id", user.ID)
		}
		return apperr.DeliveryFailed("There was an error sending the email. Try again later!", err)
	}
	return nil
}

// ResetPassword consumes a reset token and installs the new password,
// signing the user in. Expired and unknown tokens are indistinguishable.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	sum := sha256.Sum256([]byte(token))
	user, err := s.users.FindByValidResetToken(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", apperr.Validation("Token is invalid or has expired")
	}

	if err := s.setPassword(ctx, user.ID, req.Password); err != nil {
		return nil, "", err
	}

	signed, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, signed, nil
}

// UpdatePassword changes the password of a signed-in user after checking
// the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID int64, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", apperr.Unauthenticated("The user belonging to this token does no longer exist")
	}

	match, err := argon2id.ComparePasswordAndHash(req.PasswordCurrent, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return nil, "", apperr.Unauthenticated("Your current password is wrong")
	}

	if err := s.setPassword(ctx, user.ID, req.Password); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	changedAt := time.Now().Add(-passwordChangedBackdate)
	return s.users.UpdatePassword(ctx, userID, hash, changedAt)
}

func (s *AuthService) issueToken(userID int64) (string, error) {
	token, err := auth.New(userID, s.authCfg.JWTSecret, s.authCfg.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// newResetToken returns the plaintext token for the email and its sha256
// hex digest for storage.
func newResetToken() (token, tokenHash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(raw)
	sum := sha256.Sum256([]byte(token))
	return token, hex.EncodeToString(sum[:]), nil
}
