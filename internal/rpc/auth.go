package rpc

import (
	"crypto/subtle"
	"errors"
)

// Role is the privilege level derived from the request token.
type Role int

const (
	// RolePublic may call query and claim methods.
	RolePublic Role = iota

	// RoleNetwork is the trusted trading system; it may submit fee
	// events.
	RoleNetwork

	// RoleAdmin may mutate runtime configuration.
	RoleAdmin
)

// ErrForbidden is returned when a method requires a higher role than
// the request carries.
var ErrForbidden = errors.New("insufficient role for method")

// Auth maps shared bearer tokens to roles. Empty tokens disable the
// corresponding role entirely rather than opening it up.
type Auth struct {
	AdminToken   string
	NetworkToken string
}

// RoleFor resolves the role for a presented token.
func (a Auth) RoleFor(token string) Role {
	if token != "" {
		if a.AdminToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.AdminToken)) == 1 {
			return RoleAdmin
		}
		if a.NetworkToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.NetworkToken)) == 1 {
			return RoleNetwork
		}
	}
	return RolePublic
}

// requireRole checks that the caller's role is at least min.
func requireRole(role, min Role) error {
	if role < min {
		return ErrForbidden
	}
	return nil
}
