// Package auth maps bearer tokens from the identity provider onto the
// caller role/region context the repository layer scopes by. The (external)
// API layer extracts the token from its transport and hands it here.
package auth

import (
	"context"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"fleetadmin/internal/normalize"
	"fleetadmin/models"
	"fleetadmin/repository"
)

// Principal represents the authenticated caller.
type Principal struct {
	UserID   string
	Username string
	Role     models.Role
	RegionID *string
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// Scope converts the principal into the repository's list-scoping value.
func (p *Principal) Scope() *repository.Scope {
	return &repository.Scope{
		Role:     p.Role,
		RegionID: p.RegionID,
		UserID:   p.UserID,
	}
}

// ParseBearer validates a bearer token string (with or without the
// "Bearer " prefix) against the shared secret and returns the caller
// principal. Role spellings from older identity records are normalized
// onto the current set.
func ParseBearer(token, secret string) (*Principal, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	token = strings.TrimSpace(token)
	if rest, ok := strings.CutPrefix(token, "Bearer "); ok {
		token = strings.TrimSpace(rest)
	}
	if token == "" {
		return nil, errors.New("missing token")
	}

	type claims struct {
		Sub      string  `json:"sub"`
		Username string  `json:"username"`
		Role     string  `json:"role"`
		RegionID *string `json:"region_id"`
		jwt.RegisteredClaims
	}

	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.Sub == "" {
		return nil, errors.New("invalid claims")
	}
	role, _ := normalize.Role(c.Role)
	return &Principal{
		UserID:   c.Sub,
		Username: c.Username,
		Role:     role,
		RegionID: c.RegionID,
	}, nil
}
