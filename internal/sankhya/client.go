// Package sankhya reads reference data out of a Sankhya ERP through its
// HTTP gateway. Authentication yields a bearer token; queries go through
// the DbExplorerSP.executeQuery service.
package sankhya

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout bounds a single gateway round trip.
const DefaultTimeout = 30 * time.Second

// loginRetryMaxElapsed caps how long Login keeps retrying transient
// transport failures before giving up.
const loginRetryMaxElapsed = 30 * time.Second

// ErrNotAuthenticated indicates Query was called before a successful Login.
var ErrNotAuthenticated = errors.New("sankhya: not authenticated, call Login first")

// Config holds the gateway connection parameters.
type Config struct {
	BaseURL  string
	AppKey   string
	Token    string
	Username string
	Password string
}

// Client is a connection to the Sankhya gateway.
type Client struct {
	cfg    Config
	http   *http.Client
	bearer string
}

// NewClient creates an unauthenticated client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

func newLoginBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = loginRetryMaxElapsed
	return bo
}

// isRetryableError returns true for transient transport failures worth
// retrying during login. Credential rejections are not retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") {
		return true
	}
	if strings.Contains(errStr, "connection reset") {
		return true
	}
	if strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

// Login obtains a bearer token. Transient transport errors are retried
// with exponential backoff; an HTTP-level rejection fails immediately.
func (c *Client) Login(ctx context.Context) error {
	bo := newLoginBackoff()
	return backoff.Retry(func() error {
		err := c.login(ctx)
		if err != nil && isRetryableError(err) {
			return err // Retryable - backoff will retry
		}
		if err != nil {
			return backoff.Permanent(err) // Non-retryable - stop immediately
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

func (c *Client) login(ctx context.Context) error {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/login"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("sankhya: build login request: %w", err)
	}
	req.Header.Set("Appkey", c.cfg.AppKey)
	req.Header.Set("Token", c.cfg.Token)
	req.Header.Set("Username", c.cfg.Username)
	req.Header.Set("Password", c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sankhya: login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sankhya: read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sankhya: login failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		BearerToken string `json:"bearerToken"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("sankhya: decode login response: %w", err)
	}
	if payload.BearerToken == "" {
		return errors.New("sankhya: login response carried no bearerToken")
	}

	c.bearer = payload.BearerToken
	return nil
}

// Authenticated reports whether a bearer token is held.
func (c *Client) Authenticated() bool {
	return c.bearer != ""
}

// gatewayResponse is the envelope every gateway service call returns.
type gatewayResponse struct {
	Status        string `json:"status"`
	StatusMessage string `json:"statusMessage"`
	ResponseBody  struct {
		FieldsMetadata []struct {
			Name string `json:"name"`
		} `json:"fieldsMetadata"`
		Rows [][]any `json:"rows"`
	} `json:"responseBody"`
}

// Query runs a SQL statement through DbExplorerSP.executeQuery and
// returns the rows as maps keyed by the column names the server reports.
// All values are normalized to strings; numeric columns lose no precision
// the sync cares about (codes and degrees are small integers).
func (c *Client) Query(ctx context.Context, sql string) ([]map[string]string, error) {
	if c.bearer == "" {
		return nil, ErrNotAuthenticated
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") +
		"/gateway/v1/mge/service.sbr?serviceName=DbExplorerSP.executeQuery&outputType=json"

	reqBody, err := json.Marshal(map[string]any{
		"serviceName": "DbExplorerSP.executeQuery",
		"requestBody": map[string]any{"sql": sql},
	})
	if err != nil {
		return nil, fmt.Errorf("sankhya: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("sankhya: build query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sankhya: query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sankhya: read query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sankhya: query failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload gatewayResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("sankhya: decode query response: %w", err)
	}
	if payload.Status != "1" {
		msg := payload.StatusMessage
		if msg == "" {
			msg = "unknown gateway error"
		}
		return nil, fmt.Errorf("sankhya: query rejected: %s", msg)
	}

	cols := make([]string, len(payload.ResponseBody.FieldsMetadata))
	for i, f := range payload.ResponseBody.FieldsMetadata {
		cols[i] = f.Name
	}

	rows := make([]map[string]string, 0, len(payload.ResponseBody.Rows))
	for _, raw := range payload.ResponseBody.Rows {
		row := make(map[string]string, len(cols))
		for i, col := range cols {
			if i < len(raw) {
				row[col] = cellString(raw[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cellString renders a gateway cell value as a string. The gateway mixes
// JSON numbers and strings in the same column depending on the driver.
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", val)
	}
}
