package auth

import (
	"context"
	"net/http"
	"net/url"
)

// Context keys for auth data
type contextKey string

const (
	userIDKey   contextKey = "userID"
	usernameKey contextKey = "username"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// Middleware provides authentication middleware for HTTP handlers.
type Middleware struct {
	sessionService *SessionService
	userService    *UserService
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(sessionService *SessionService, userService *UserService) *Middleware {
	return &Middleware{
		sessionService: sessionService,
		userService:    userService,
	}
}

// RequireAuth is middleware that requires a valid session.
// Browsers without one are redirected to the login page with the original
// URL preserved in the next query parameter.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.resolveUser(r)
		if !ok {
			redirectToLogin(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		ctx = context.WithValue(ctx, usernameKey, user.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth is middleware that adds user info to context if present.
// Does not require authentication.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.resolveUser(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		ctx = context.WithValue(ctx, usernameKey, user.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveUser validates the session cookie and loads the account.
func (m *Middleware) resolveUser(r *http.Request) (*User, bool) {
	sessionID, err := GetFromRequest(r)
	if err != nil {
		return nil, false
	}

	userID, err := m.sessionService.Validate(r.Context(), sessionID)
	if err != nil {
		return nil, false
	}

	user, err := m.userService.GetByID(r.Context(), userID)
	if err != nil {
		return nil, false
	}
	return user, true
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// GetUserID retrieves the user ID from the request context.
// Returns empty string if no user is authenticated.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// GetUsername retrieves the username from the request context.
func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

// IsAuthenticated reports whether the request context carries a user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}
