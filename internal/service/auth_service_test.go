package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/service"
	"github.com/wanderpeak/tours-api/pkg/auth"
	"github.com/wanderpeak/tours-api/pkg/config"
	"github.com/wanderpeak/tours-api/pkg/events"
)

// ---------- Mocks ----------

type mockUserStore struct {
	nextID int64
	users  map[int64]*domain.User

	resetCleared bool
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{nextID: 1, users: map[int64]*domain.User{}}
}

func (m *mockUserStore) Create(_ context.Context, name, email, passwordHash string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return nil, apperr.Conflict("duplicate email")
		}
	}
	u := &domain.User{
		ID:           m.nextID,
		Name:         name,
		Email:        email,
		Role:         domain.RoleUser,
		PasswordHash: passwordHash,
		Active:       true,
	}
	m.users[u.ID] = u
	m.nextID++
	return u, nil
}

func (m *mockUserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email && u.Active {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserStore) FindByValidResetToken(_ context.Context, tokenHash string) (*domain.User, error) {
	for _, u := range m.users {
		if u.PasswordResetToken == tokenHash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(time.Now()) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) UpdatePassword(_ context.Context, id int64, passwordHash string, changedAt time.Time) error {
	u := m.users[id]
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return nil
}

func (m *mockUserStore) SetResetToken(_ context.Context, id int64, tokenHash string, expires time.Time) error {
	u := m.users[id]
	u.PasswordResetToken = tokenHash
	u.PasswordResetExpires = &expires
	return nil
}

func (m *mockUserStore) ClearResetToken(_ context.Context, id int64) error {
	u := m.users[id]
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.resetCleared = true
	return nil
}

type mockMailer struct {
	welcomeTo    string
	resetTo      string
	lastResetURL string
	sendErr      error
}

func (m *mockMailer) SendWelcomeEmail(toEmail, toName, accountURL string) error {
	m.welcomeTo = toEmail
	return nil
}

func (m *mockMailer) SendPasswordResetEmail(toEmail, toName, resetURL string) error {
	m.resetTo = toEmail
	m.lastResetURL = resetURL
	return m.sendErr
}

// ---------- Helpers ----------

var testAuthCfg = config.AuthConfig{
	JWTSecret:     "test-secret",
	TokenTTL:      time.Hour,
	ResetTokenTTL: 10 * time.Minute,
}

func newService() (*service.AuthService, *mockUserStore, *mockMailer) {
	store := newMockUserStore()
	mail := &mockMailer{}
	svc := service.NewAuthService(store, mail, events.NoopBus{}, testAuthCfg, "http://localhost:8080")
	return svc, store, mail
}

func signup(t *testing.T, svc *service.AuthService) *domain.User {
	t.Helper()
	user, _, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Test Traveller",
		Email:           "traveller@example.com",
		Password:        "password123",
		PasswordConfirm: "password123",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	return user
}

// ---------- Tests ----------

func TestSignupHashesPassword(t *testing.T) {
	svc, store, mail := newService()
	user := signup(t, svc)

	stored := store.users[user.ID]
	if stored.PasswordHash == "password123" {
		t.Fatal("password stored in plaintext")
	}
	match, err := argon2id.ComparePasswordAndHash("password123", stored.PasswordHash)
	if err != nil || !match {
		t.Errorf("stored hash does not verify: match=%v err=%v", match, err)
	}
	if mail.welcomeTo != "traveller@example.com" {
		t.Errorf("welcome email sent to %q", mail.welcomeTo)
	}
}

func TestSignupIssuesToken(t *testing.T) {
	svc, _, _ := newService()
	_, token, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Test Traveller",
		Email:           "traveller@example.com",
		Password:        "password123",
		PasswordConfirm: "password123",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	claims, err := auth.Parse(token, testAuthCfg.JWTSecret)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Sub != 1 {
		t.Errorf("token sub = %d", claims.Sub)
	}
}

func TestSignupShortPassword(t *testing.T) {
	svc, _, _ := newService()
	_, _, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Test",
		Email:           "t@example.com",
		Password:        "short12",
		PasswordConfirm: "short12",
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if appErr.Fields["password"] == "" {
		t.Error("expected a password field message")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newService()
	signup(t, svc)

	_, _, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "traveller@example.com",
		Password: "wrong-password",
	})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if appErr.Message != "Incorrect email or password" {
		t.Errorf("message = %q", appErr.Message)
	}
}

// Unknown email and wrong password must be indistinguishable.
func TestLoginUnknownEmailSameMessage(t *testing.T) {
	svc, _, _ := newService()

	_, _, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	appErr := apperr.From(err)
	if appErr.Message != "Incorrect email or password" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, _ := newService()

	err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	appErr := apperr.From(err)
	if appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestForgotPasswordStoresHashedToken(t *testing.T) {
	svc, store, mail := newService()
	user := signup(t, svc)

	if err := svc.ForgotPassword(context.Background(), user.Email); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	plaintext := resetTokenFromURL(t, mail.lastResetURL)
	stored := store.users[user.ID].PasswordResetToken
	if stored == plaintext {
		t.Fatal("reset token stored in plaintext")
	}
	sum := sha256.Sum256([]byte(plaintext))
	if stored != hex.EncodeToString(sum[:]) {
		t.Error("stored token is not the sha256 of the mailed token")
	}
}

func TestForgotPasswordRollsBackOnMailFailure(t *testing.T) {
	svc, store, mail := newService()
	user := signup(t, svc)
	mail.sendErr = errors.New("smtp down")

	err := svc.ForgotPassword(context.Background(), user.Email)
	appErr := apperr.From(err)
	if appErr.Code != apperr.CodeDeliveryFailed {
		t.Fatalf("expected delivery failure, got %v", err)
	}
	if !store.resetCleared {
		t.Error("reset token was not rolled back")
	}
	if store.users[user.ID].PasswordResetToken != "" {
		t.Error("reset token still set after rollback")
	}
}

func TestResetPassword(t *testing.T) {
	svc, store, mail := newService()
	user := signup(t, svc)
	if err := svc.ForgotPassword(context.Background(), user.Email); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	token := resetTokenFromURL(t, mail.lastResetURL)

	_, signed, err := svc.ResetPassword(context.Background(), token, &domain.ResetPasswordRequest{
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	if err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if signed == "" {
		t.Error("expected a fresh token")
	}

	stored := store.users[user.ID]
	if match, _ := argon2id.ComparePasswordAndHash("new-password-1", stored.PasswordHash); !match {
		t.Error("new password does not verify")
	}
	if stored.PasswordResetToken != "" {
		t.Error("reset token should be consumed")
	}
	if stored.PasswordChangedAt == nil || !stored.PasswordChangedAt.Before(time.Now()) {
		t.Error("password_changed_at should be backdated before now")
	}
}

func TestResetPasswordBadToken(t *testing.T) {
	svc, _, _ := newService()
	signup(t, svc)

	_, _, err := svc.ResetPassword(context.Background(), "bogus-token", &domain.ResetPasswordRequest{
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	appErr := apperr.From(err)
	if appErr.Code != apperr.CodeValidation || appErr.Message != "Token is invalid or has expired" {
		t.Errorf("got %v", err)
	}
}

// A token whose hash still matches but whose expiry has passed must be
// rejected without touching the password.
func TestResetPasswordExpiredToken(t *testing.T) {
	svc, store, mail := newService()
	user := signup(t, svc)
	if err := svc.ForgotPassword(context.Background(), user.Email); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	token := resetTokenFromURL(t, mail.lastResetURL)

	expired := time.Now().Add(-time.Minute)
	store.users[user.ID].PasswordResetExpires = &expired
	hashBefore := store.users[user.ID].PasswordHash

	_, _, err := svc.ResetPassword(context.Background(), token, &domain.ResetPasswordRequest{
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	appErr := apperr.From(err)
	if appErr.Code != apperr.CodeValidation || appErr.Message != "Token is invalid or has expired" {
		t.Fatalf("got %v", err)
	}
	if store.users[user.ID].PasswordHash != hashBefore {
		t.Error("password mutated on expired token")
	}
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	svc, _, _ := newService()
	user := signup(t, svc)

	_, _, err := svc.UpdatePassword(context.Background(), user.ID, &domain.UpdatePasswordRequest{
		PasswordCurrent: "not-my-password",
		Password:        "new-password-1",
		PasswordConfirm: "new-password-1",
	})
	appErr := apperr.From(err)
	if appErr.Code != apperr.CodeUnauthenticated || appErr.Message != "Your current password is wrong" {
		t.Errorf("got %v", err)
	}
}

func resetTokenFromURL(t *testing.T, resetURL string) string {
	t.Helper()
	if resetURL == "" {
		t.Fatal("no reset URL captured")
	}
	parts := strings.Split(resetURL, "/")
	return parts[len(parts)-1]
}
