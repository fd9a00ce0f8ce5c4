package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session. Its ID is carried as the
// jti claim of issued bearer tokens so logout can revoke them.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type authSessionCtxKey struct{}

// ContextWithAuthSessionID stores the current auth session ID in context.
func ContextWithAuthSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, authSessionCtxKey{}, id)
}

// AuthSessionIDFromContext retrieves the auth session ID from context.
func AuthSessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(authSessionCtxKey{}).(string)
	return id
}

// ExamConfig holds runtime parameters set via CLI flags.
type ExamConfig struct {
	PromptVariant string        // Marking prompt variant (strict, standard, lenient)
	JWTSecret     string        // HMAC key for bearer tokens
	TokenTTL      time.Duration // Lifetime of issued bearer tokens
	AIRateLimit   float64       // Gateway requests per second per server, 0 disables limiting
	AIBurst       int
	PublicURL     string // Absolute URL prefix used in links to results
	SecureCookies bool   // Set the Secure flag on the session cookie
}
