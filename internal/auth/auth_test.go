package auth

import (
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"

	"fleetadmin/models"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestParseBearer(t *testing.T) {
	secret := "test-secret"
	region := "region-1"
	token := signToken(t, secret, jwt.MapClaims{
		"sub":       "user-1",
		"username":  "cmdr",
		"role":      "commander",
		"region_id": region,
	})

	p, err := ParseBearer("Bearer "+token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.UserID != "user-1" || p.Username != "cmdr" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.Role != models.RoleRegionCommander {
		t.Errorf("legacy role spelling not normalized: %v", p.Role)
	}
	if p.RegionID == nil || *p.RegionID != region {
		t.Errorf("region not carried: %v", p.RegionID)
	}

	scope := p.Scope()
	if scope.Role != models.RoleRegionCommander || scope.UserID != "user-1" {
		t.Errorf("unexpected scope: %+v", scope)
	}
}

func TestParseBearerRejectsBadTokens(t *testing.T) {
	secret := "test-secret"
	good := signToken(t, secret, jwt.MapClaims{"sub": "user-1", "role": "operator"})

	if _, err := ParseBearer(good, "other-secret"); err == nil {
		t.Error("expected error for wrong secret")
	}
	if _, err := ParseBearer("", secret); err == nil {
		t.Error("expected error for empty token")
	}
	noSub := signToken(t, secret, jwt.MapClaims{"role": "operator"})
	if _, err := ParseBearer(noSub, secret); err == nil {
		t.Error("expected error for missing sub")
	}
}

func TestParseBearerUnknownRoleDefaultsToOperator(t *testing.T) {
	secret := "test-secret"
	token := signToken(t, secret, jwt.MapClaims{"sub": "user-2", "role": "grand wizard"})
	p, err := ParseBearer(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Role != models.RoleOperator {
		t.Errorf("unknown role should map to OPERATOR, got %v", p.Role)
	}
}
