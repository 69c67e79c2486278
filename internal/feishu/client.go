// Package feishu is a minimal REST client for the Feishu (Lark) Bitable
// API, covering tenant auth, table and field management, and batch record
// creation.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/qq940500529/oracle-feishu-sync/internal/config"
	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/syncerr"
)

const defaultBaseURL = "https://open.feishu.cn/open-apis"

// tokenSlack renews the tenant token this long before its reported expiry.
const tokenSlack = 5 * time.Minute

// Client calls the Bitable API on behalf of one app.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appSecret  string
	appToken   string

	mu          sync.Mutex
	tenantToken string
	tokenExpiry time.Time
}

// New builds a client from config. The request timeout bounds every
// individual HTTP call.
func New(cfg *config.FeishuConfig, timeout time.Duration) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		appToken:   cfg.AppToken,
	}
}

// apiResponse is the envelope every Bitable endpoint returns.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// auth error codes returned in the envelope for bad or expired credentials.
func isAuthCode(code int) bool {
	return code >= 99991661 && code <= 99991668
}

// token fetches or refreshes the cached tenant access token. Refresh is
// the one call that retries, so a blip during auth does not kill a run
// before any data has moved.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tenantToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.tenantToken, nil
	}

	var tok string
	var expire int
	err := retry.Do(
		func() error {
			var err error
			tok, expire, err = c.fetchToken(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.RetryIf(func(err error) bool { return syncerr.Is(err, syncerr.KindTransient) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	c.tenantToken = tok
	c.tokenExpiry = time.Now().Add(time.Duration(expire)*time.Second - tokenSlack)
	logging.Debug("Tenant access token refreshed, valid for %ds", expire)
	return tok, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, int, error) {
	body, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", 0, syncerr.Wrap(syncerr.KindTransient, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, syncerr.Wrap(syncerr.KindTransient, "request tenant token", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, "tenant token"); err != nil {
		return "", 0, err
	}

	var parsed struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, syncerr.Wrap(syncerr.KindTransient, "decode token response", err)
	}
	if parsed.Code != 0 {
		return "", 0, syncerr.Errorf(syncerr.KindAuth, "tenant token rejected: code %d: %s", parsed.Code, parsed.Msg)
	}
	return parsed.TenantAccessToken, parsed.Expire, nil
}

// do issues one authenticated API call and decodes data into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return syncerr.Wrap(syncerr.KindTransient, "marshal request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return syncerr.Wrap(syncerr.KindTransient, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Timeout() {
			return syncerr.Wrap(syncerr.KindTransient, fmt.Sprintf("%s %s timed out", method, path), err)
		}
		return syncerr.Wrap(syncerr.KindTransient, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, method+" "+path); err != nil {
		return err
	}

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return syncerr.Wrap(syncerr.KindTransient, "decode response", err)
	}
	if env.Code != 0 {
		kind := syncerr.KindTransient
		if isAuthCode(env.Code) {
			kind = syncerr.KindAuth
		}
		return syncerr.Errorf(kind, "%s %s: code %d: %s", method, path, env.Code, env.Msg)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return syncerr.Wrap(syncerr.KindTransient, "decode response data", err)
		}
	}
	return nil
}

// statusError maps an HTTP status to the error taxonomy: auth failures
// are fatal, throttling and server errors are transient.
func statusError(status int, op string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return syncerr.Errorf(syncerr.KindAuth, "%s: HTTP %d", op, status)
	case status == http.StatusTooManyRequests || status >= 500:
		return syncerr.Errorf(syncerr.KindTransient, "%s: HTTP %d", op, status)
	default:
		return syncerr.Errorf(syncerr.KindTransient, "%s: unexpected HTTP %d", op, status)
	}
}
