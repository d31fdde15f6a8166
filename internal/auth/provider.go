// Package auth authenticates bearer tokens and gates admin routes.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// User is the identity resolved from a request token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Provider resolves a bearer token into a User or fails with ErrUnauthenticated.
type Provider interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// AdminList is the set of admin emails, compared case-insensitively.
type AdminList map[string]struct{}

func NewAdminList(emails []string) AdminList {
	out := make(AdminList, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}

func (a AdminList) IsAdmin(u *User) bool {
	if u == nil {
		return false
	}
	_, ok := a[strings.ToLower(strings.TrimSpace(u.Email))]
	return ok
}
