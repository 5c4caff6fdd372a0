package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/wanderpeak/tours-api/internal/apperr"
)

// Valid user roles.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleGuide:     true,
	RoleLeadGuide: true,
	RoleAdmin:     true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// User is the authentication identity plus profile. Hash, reset-token and
// soft-delete state never leave the process boundary.
type User struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Photo                string     `json:"photo"`
	Role                 string     `json:"role"`
	PasswordHash         string     `json:"-"`
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PasswordChangedAfter reports whether the password changed after the given
// credential issue time. A credential issued before the change is stale.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	// Compare at second precision: JWT iat carries unix seconds.
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

const MinPasswordLength = 8

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

func (r *SignupRequest) Validate() error {
	fields := map[string]string{}
	if r.Name == "" {
		fields["name"] = "Please tell us your name"
	}
	if r.Email == "" {
		fields["email"] = "Please provide your email"
	} else if !IsValidEmail(r.Email) {
		fields["email"] = "Please provide a valid email"
	}
	if len(r.Password) < MinPasswordLength {
		fields["password"] = "Password must be at least 8 characters"
	}
	if r.Password != r.PasswordConfirm {
		fields["password_confirm"] = "Passwords are not the same"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return apperr.Validation("Please provide email and password")
	}
	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r *ResetPasswordRequest) Validate() error {
	fields := map[string]string{}
	if len(r.Password) < MinPasswordLength {
		fields["password"] = "Password must be at least 8 characters"
	}
	if r.Password != r.PasswordConfirm {
		fields["password_confirm"] = "Passwords are not the same"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"password_current"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r *UpdatePasswordRequest) Validate() error {
	fields := map[string]string{}
	if r.PasswordCurrent == "" {
		fields["password_current"] = "Please provide your current password"
	}
	if len(r.Password) < MinPasswordLength {
		fields["password"] = "Password must be at least 8 characters"
	}
	if r.Password != r.PasswordConfirm {
		fields["password_confirm"] = "Passwords are not the same"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// UpdateMeRequest covers profile self-service. Password fields are rejected
// up front so this path can never bypass the hashing write path.
type UpdateMeRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Photo *string `json:"photo,omitempty"`
}

func (r *UpdateMeRequest) Normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.Email != nil {
		normalized := NormalizeEmail(*r.Email)
		r.Email = &normalized
	}
}

func (r *UpdateMeRequest) Validate() error {
	if r.Email != nil && !IsValidEmail(*r.Email) {
		return apperr.ValidationFields(map[string]string{"email": "Please provide a valid email"})
	}
	if r.Name != nil && *r.Name == "" {
		return apperr.ValidationFields(map[string]string{"name": "Please tell us your name"})
	}
	return nil
}

// AdminUpdateUserRequest additionally allows role changes.
type AdminUpdateUserRequest struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Photo  *string `json:"photo,omitempty"`
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (r *AdminUpdateUserRequest) Validate() error {
	if r.Role != nil && !IsValidRole(*r.Role) {
		return apperr.ValidationFields(map[string]string{"role": "Invalid role"})
	}
	if r.Email != nil && !IsValidEmail(NormalizeEmail(*r.Email)) {
		return apperr.ValidationFields(map[string]string{"email": "Please provide a valid email"})
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
