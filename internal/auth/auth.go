// Package auth is the boundary to the identity service. Token issuance
// and credential validation live outside this process; the dispatcher
// only needs to turn a presented token into a participant id and role,
// or refuse the connection.
package auth

import (
	"errors"
	"strings"

	"github.com/example/trip-dispatch/internal/models"
)

// ErrUnauthorized covers missing tokens, unknown tokens, and role
// mismatches. Connections failing auth are refused, never admitted.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is an authenticated participant.
type Identity struct {
	ID   string
	Role models.Role
}

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(token string) (Identity, error)
}

// StaticTokens is a fixed token table, loaded from configuration. It
// stands in for the identity service in development and tests.
type StaticTokens struct {
	tokens map[string]Identity
}

// NewStaticTokens builds an authenticator from token -> "id:role" pairs.
// Entries with an unknown role are skipped.
func NewStaticTokens(raw map[string]string) *StaticTokens {
	tokens := make(map[string]Identity, len(raw))
	for tok, ident := range raw {
		id, role, ok := strings.Cut(ident, ":")
		if !ok || id == "" {
			continue
		}
		switch models.Role(strings.ToLower(role)) {
		case models.RoleDriver:
			tokens[tok] = Identity{ID: id, Role: models.RoleDriver}
		case models.RolePassenger:
			tokens[tok] = Identity{ID: id, Role: models.RolePassenger}
		}
	}
	return &StaticTokens{tokens: tokens}
}

func (s *StaticTokens) Authenticate(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	ident, ok := s.tokens[token]
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return ident, nil
}
