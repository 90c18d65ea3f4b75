package inviteflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultProvider = "google"

// APIError carries a non-2xx backend response. Detail is the human-readable
// message the backend put in the error body.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api: %d", e.StatusCode)
}

// ValidationResult is the response of the invite validation endpoint.
type ValidationResult struct {
	Valid        bool       `json:"valid"`
	InviteType   string     `json:"invite_type,omitempty"`
	InvitedEmail string     `json:"invited_email,omitempty"`
	InviterName  string     `json:"inviter_name,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// AcceptResult is the response of the invite acceptance endpoints.
type AcceptResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Session is the response of the main-login code exchange.
type Session struct {
	User        json.RawMessage `json:"user"`
	AccessToken string          `json:"access_token"`
}

// ConnectResult is the response of the mailbox-connection code exchanges.
type ConnectResult struct {
	Email         string  `json:"email"`
	AccountID     string  `json:"account_id,omitempty"`
	InviterUserID *string `json:"inviter_user_id,omitempty"`
	Message       string  `json:"message,omitempty"`
}

type authURLResponse struct {
	AuthURL string `json:"auth_url"`
}

// Client is a typed HTTP client for the invite and OAuth endpoints. It owns
// the durable session identity: a successful login stores the access token and
// user, and any 401 from an authenticated call clears both.
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
	store      SessionStore
	log        *zap.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithProvider overrides the OAuth provider path segment.
func WithProvider(provider string) ClientOption {
	return func(c *Client) {
		if provider != "" {
			c.provider = provider
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient constructs a Client rooted at baseURL, persisting session state
// into store.
func NewClient(baseURL string, store SessionStore, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		provider:   defaultProvider,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the session store for collaborators such as the Coordinator.
func (c *Client) Store() SessionStore { return c.store }

// Authenticated reports whether a session token is present.
func (c *Client) Authenticated() bool {
	token, ok := c.store.Get(KeyAccessToken)
	return ok && token != ""
}

// Logout removes the durable session identity.
func (c *Client) Logout() {
	c.store.Delete(KeyAccessToken)
	c.store.Delete(KeyUser)
}

// ValidateInvite classifies an invite token. The endpoint answers 200 even
// for dead tokens; only transport or server failures return an error.
func (c *Client) ValidateInvite(ctx context.Context, token string) (*ValidationResult, error) {
	var result ValidationResult
	path := "/api/invites/validate/" + url.PathEscape(token)
	if err := c.do(ctx, http.MethodGet, path, nil, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AcceptInvite redeems an invite as the signed-in user.
func (c *Client) AcceptInvite(ctx context.Context, token string) (*AcceptResult, error) {
	var result AcceptResult
	body := map[string]string{"invite_token": token}
	if err := c.do(ctx, http.MethodPost, "/api/invites/accept", body, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AcceptInvitePublic redeems an add-email invite with no session at all.
func (c *Client) AcceptInvitePublic(ctx context.Context, token string) (*AcceptResult, error) {
	var result AcceptResult
	body := map[string]string{"invite_token": token}
	if err := c.do(ctx, http.MethodPost, "/api/invites/accept-public", body, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AuthorizationURL fetches a fresh authorization URL for the signed-in
// mailbox-connection flow. URLs are never cached or reused.
func (c *Client) AuthorizationURL(ctx context.Context) (string, error) {
	var result authURLResponse
	path := fmt.Sprintf("/api/email-accounts/oauth/%s/url", c.provider)
	if err := c.do(ctx, http.MethodGet, path, nil, true, &result); err != nil {
		return "", err
	}
	return result.AuthURL, nil
}

// AuthorizationURLPublic fetches a fresh authorization URL for the invited,
// unauthenticated mailbox-connection flow.
func (c *Client) AuthorizationURLPublic(ctx context.Context) (string, error) {
	var result authURLResponse
	path := fmt.Sprintf("/api/email-accounts/oauth/%s/url-public", c.provider)
	if err := c.do(ctx, http.MethodGet, path, nil, false, &result); err != nil {
		return "", err
	}
	return result.AuthURL, nil
}

// ExchangeConnect completes a signed-in mailbox connection.
func (c *Client) ExchangeConnect(ctx context.Context, code string) (*ConnectResult, error) {
	var result ConnectResult
	path := fmt.Sprintf("/api/email-accounts/oauth/%s/callback", c.provider)
	body := map[string]string{"code": code}
	if err := c.do(ctx, http.MethodPost, path, body, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExchangeConnectPublic completes an invite-driven mailbox connection. The
// code travels form-encoded because no JSON body is guaranteed on this path.
func (c *Client) ExchangeConnectPublic(ctx context.Context, code string) (*ConnectResult, error) {
	path := fmt.Sprintf("%s/api/email-accounts/oauth/%s/callback-public", c.baseURL, c.provider)

	form := url.Values{"code": {code}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result ConnectResult
	if err := c.send(req, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExchangeLogin completes the main sign-in flow and stores the session.
func (c *Client) ExchangeLogin(ctx context.Context, code string) (*Session, error) {
	var session Session
	body := map[string]string{"code": code}
	if err := c.do(ctx, http.MethodPost, "/auth/google/exchange", body, false, &session); err != nil {
		return nil, err
	}

	c.store.Set(KeyAccessToken, session.AccessToken)
	c.store.Set(KeyUser, string(session.User))
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, authenticated bool, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, authenticated, out)
}

func (c *Client) send(req *http.Request, authenticated bool, out interface{}) error {
	if authenticated {
		token, ok := c.store.Get(KeyAccessToken)
		if ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A rejected token means the session is dead everywhere, not just
		// for this request.
		if resp.StatusCode == http.StatusUnauthorized && authenticated {
			c.Logout()
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorDetail(data []byte) string {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	return body.Message
}
