// Package models defines server-side data models persisted by the
// repositories.
package models

import (
	"strings"
	"time"
)

// AuthTypeWindows marks users authenticated by an upstream Windows identity.
const AuthTypeWindows = "windows"

// ScopeSeparator marks roles shaped like "resource.action" that are exposed
// as OAuth scopes.
const ScopeSeparator = "."

// User is a directory entry. It is provisioned externally and never changed
// by the token flow.
type User struct {
	ID        string
	UserName  string
	AuthType  string
	Roles     []string
	IsActive  bool
	CreatedAt time.Time
}

// Scope returns the space-joined subset of roles containing ScopeSeparator,
// in role order.
func (u *User) Scope() string {
	scopes := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if strings.Contains(r, ScopeSeparator) {
			scopes = append(scopes, r)
		}
	}
	return strings.Join(scopes, " ")
}
