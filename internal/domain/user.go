package domain

import (
	"context"
	"errors"
)

// User is the identity supplied by the external identity provider.
// The ledger never creates or authenticates users; it only trusts a verified token.
type User struct {
	ID   string
	Role Role
}

// Role represents a user's access level
type Role string

const (
	// RoleAdmin can open rounds, trigger draws and post adjustments
	RoleAdmin Role = "admin"

	// RoleOperator can open rounds and trigger draws
	RoleOperator Role = "operator"

	// RolePlayer can read and spend their own coins only
	RolePlayer Role = "player"

	// RoleService is held by the session and savings-ingestion services that report earning events
	RoleService Role = "service"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RolePlayer:   true,
	RoleService:  true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanOperateRounds checks if the role can open, close and draw rounds
func (r Role) CanOperateRounds() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanAdjust checks if the role can post compensating adjustments
func (r Role) CanAdjust() bool {
	return r == RoleAdmin
}

// CanRecordEarnings checks if the role may report logins and savings.
// Players never can: a self-reported event would mint coins.
func (r Role) CanRecordEarnings() bool {
	return r == RoleService || r == RoleAdmin
}

// CanActFor checks if u may act on behalf of userID.
func (u *User) CanActFor(userID string) bool {
	return u.ID == userID || u.Role.CanOperateRounds()
}

type userContextKey struct{}

// ContextWithUser stores the authenticated user in ctx.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the authenticated user from ctx.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*User)
	return user, ok && user != nil
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
