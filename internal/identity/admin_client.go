// Package identity handles the best-effort cleanup of identity-provider
// accounts linked to deleted users. Nothing here ever runs inside a store
// transaction.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AdminClient calls the identity provider's admin API. Requests carry a
// short-lived HS256 service token minted from the shared mirror secret.
type AdminClient struct {
	http      *resty.Client
	jwtSecret string
	logger    *zap.Logger
}

func NewAdminClient(baseURL, apiKey, jwtSecret string, logger *zap.Logger) *AdminClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("apikey", apiKey)
	return &AdminClient{http: hc, jwtSecret: jwtSecret, logger: logger}
}

// serviceToken mints a short-lived admin token. A fresh token per request
// keeps no long-lived credential in memory beyond the secret itself.
func (c *AdminClient) serviceToken() (string, error) {
	if c.jwtSecret == "" {
		return "", fmt.Errorf("identity jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"role": "service_role",
		"iat":  now.Unix(),
		"exp":  now.Add(5 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.jwtSecret))
}

// DeleteAccount removes the identity record for an external id. A 404 is
// treated as success: the account is gone either way.
func (c *AdminClient) DeleteAccount(ctx context.Context, externalID string) error {
	tok, err := c.serviceToken()
	if err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		Delete("/auth/v1/admin/users/" + externalID)
	if err != nil {
		return fmt.Errorf("identity delete %s: %w", externalID, err)
	}
	if resp.IsError() && resp.StatusCode() != 404 {
		return fmt.Errorf("identity delete %s: status %d", externalID, resp.StatusCode())
	}
	c.logger.Debug("identity account deleted", zap.String("external_id", externalID))
	return nil
}
