package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/response"
	"github.com/wanderpeak/tours-api/pkg/auth"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

// AuthCookieName is the cookie the browser flows carry the token in; API
// clients use the Authorization header instead.
const AuthCookieName = "jwt"

type ctxKey string

const ctxUser ctxKey = "user"

// UserLoader resolves a token subject to a live account.
type UserLoader interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

type Auth struct {
	users  UserLoader
	secret string
}

func NewAuth(users UserLoader, secret string) *Auth {
	return &Auth{users: users, secret: secret}
}

// RequireAuth gates a route on a valid credential: token present, signature
// and expiry good, subject still exists, and the password unchanged since
// the token was issued. Failures get the JSON envelope.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return a.requireAuth(next, func(w http.ResponseWriter, r *http.Request, err error) {
		response.Error(w, r, err, false)
	})
}

// RequirePageAuth gates a rendered page, handing failures to the given page
// writer so browsers get the error page instead of the JSON envelope.
func (a *Auth) RequirePageAuth(renderError func(w http.ResponseWriter, r *http.Request, status int, message string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.requireAuth(next, func(w http.ResponseWriter, r *http.Request, err error) {
			appErr := apperr.From(err)
			renderError(w, r, appErr.HTTPStatus(), appErr.Message)
		})
	}
}

func (a *Auth) requireAuth(next http.Handler, onError func(http.ResponseWriter, *http.Request, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticate(r)
		if err != nil {
			onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// OptionalAuth resolves the user when a valid credential is present and
// silently continues anonymous otherwise. Rendered pages use it to switch
// between logged-in and logged-out navigation.
func (a *Auth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticate(r)
		if err != nil || user == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireRoles allows only the listed roles through. It must run after
// RequireAuth; with no user in context it fails closed with a 401.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				response.Error(w, r, apperr.Unauthenticated("You are not logged in! Please log in to get access"), false)
				return
			}
			if !allowed[user.Role] {
				response.Error(w, r, apperr.Forbidden("You do not have permission to perform this action"), false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser returns the authenticated user, or nil on anonymous requests.
func CurrentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(ctxUser).(*domain.User)
	return user
}

func withUser(ctx context.Context, user *domain.User) context.Context {
	ctx = context.WithValue(ctx, ctxUser, user)
	return context.WithValue(ctx, logger.UserIDKey, user.ID)
}

func (a *Auth) authenticate(r *http.Request) (*domain.User, error) {
	token := extractToken(r)
	if token == "" {
		return nil, apperr.Unauthenticated("You are not logged in! Please log in to get access")
	}

	claims, err := auth.Parse(token, a.secret)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperr.Unauthenticated("Your token has expired! Please log in again")
		}
		return nil, apperr.Unauthenticated("Invalid token. Please log in again")
	}

	user, err := a.users.FindByID(r.Context(), claims.Sub)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthenticated("The user belonging to this token does no longer exist")
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if user.PasswordChangedAfter(issuedAt) {
		return nil, apperr.Unauthenticated("User recently changed password! Please log in again")
	}
	return user, nil
}

func extractToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
