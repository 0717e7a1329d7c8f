// Package mirror talks to the remote managed backend that holds a derived
// copy of the fleet tables and the identity records. The mirror is a
// backup and recovery aid, never the transactional source of truth:
// every call here is best-effort from the caller's point of view.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Client wraps the per-table REST surface of the mirror backend. It is
// constructed once at process start and passed to its consumers; there is
// no shared global instance.
type Client struct {
	http      *resty.Client
	jwtSecret string
	logger    *zap.Logger
}

// NewClient builds a mirror client. Every call carries a 10s timeout, up
// to 3 retries with exponential wait, and a short-lived service token
// minted from the shared secret. The secret itself never travels in a
// request.
func NewClient(baseURL, apiKey, jwtSecret string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{jwtSecret: jwtSecret, logger: logger}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(4 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", apiKey).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			tok, err := c.serviceToken()
			if err != nil {
				return err
			}
			r.SetAuthToken(tok)
			return nil
		})
	return c
}

func (c *Client) serviceToken() (string, error) {
	if c.jwtSecret == "" {
		return "", fmt.Errorf("mirror jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"role": "service_role",
		"iat":  now.Unix(),
		"exp":  now.Add(5 * time.Minute).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(c.jwtSecret))
}

// Upsert writes rows into a mirror table, keyed by primary id. Re-sending
// the same rows is a no-op on the mirror side.
func (c *Client) Upsert(ctx context.Context, table string, rows any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", "id").
		SetHeader("Prefer", "resolution=merge-duplicates").
		SetBody(rows).
		Post("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("mirror upsert %s: %w", table, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mirror upsert %s: status %d: %s", table, resp.StatusCode(), resp.String())
	}
	return nil
}

// Select reads all rows of a mirror table into out, which must be a
// pointer to a slice of the table's record type.
func (c *Client) Select(ctx context.Context, table string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetResult(out).
		Get("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("mirror select %s: %w", table, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mirror select %s: status %d: %s", table, resp.StatusCode(), resp.String())
	}
	return nil
}

// DeleteByID removes one row from a mirror table.
func (c *Client) DeleteByID(ctx context.Context, table, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		Delete("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("mirror delete %s/%s: %w", table, id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mirror delete %s/%s: status %d", table, id, resp.StatusCode())
	}
	return nil
}
