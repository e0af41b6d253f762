// Package auth holds what the authentication handlers under it share.
//
// An authenticating handler registers the caller as a Principal for the
// downstream handlers with ctx.NextWith. Handlers further down, such as
// authorization, read it back from the context's registry.
package auth

import (
	"slices"

	"github.com/dormoron/strand/registry"
)

// Principal is an authenticated caller.
type Principal struct {
	Name   string
	Roles  []string
	Source string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Current returns the principal registered by an upstream handler.
func Current(r registry.Registry) (Principal, bool) {
	return registry.Lookup[Principal](r)
}

// Register returns a registry holding p, for ctx.NextWith.
func Register(p Principal) registry.Registry {
	return registry.Single(p)
}
