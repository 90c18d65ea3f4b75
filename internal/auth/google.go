package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

// FlowKind discriminates which OAuth flow a callback belongs to. It travels
// through the provider redirect as the `state` query parameter; an absent state
// means main login.
type FlowKind string

const (
	FlowLogin              FlowKind = ""
	FlowEmailAccount       FlowKind = "email_account_oauth"
	FlowEmailAccountPublic FlowKind = "email_account_oauth_public"
)

// ParseFlowKind maps a raw state parameter onto the closed flow enumeration.
func ParseFlowKind(state string) (FlowKind, error) {
	switch FlowKind(strings.TrimSpace(state)) {
	case FlowLogin:
		return FlowLogin, nil
	case FlowEmailAccount:
		return FlowEmailAccount, nil
	case FlowEmailAccountPublic:
		return FlowEmailAccountPublic, nil
	default:
		return FlowLogin, fmt.Errorf("google: unknown oauth state %q", state)
	}
}

// Identity is the verified subject extracted from a Google ID token.
type Identity struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}

// IdentityVerifier turns a raw ID token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Identity, error)
}

// GoogleConfig holds the OAuth client registration shared by the sign-in and
// mailbox-connection flows.
type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	GmailRedirectURL string
	GmailScopes      []string
}

// GoogleOption customises GoogleService behaviour, primarily for tests.
type GoogleOption func(*GoogleService)

// WithEndpoint overrides the provider token/auth endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) GoogleOption {
	return func(s *GoogleService) {
		s.endpoint = endpoint
	}
}

// WithIdentityVerifier injects a custom ID-token verifier.
func WithIdentityVerifier(v IdentityVerifier) GoogleOption {
	return func(s *GoogleService) {
		s.verifier = v
	}
}

// WithHTTPClient sets the HTTP client used for token exchanges and discovery.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(s *GoogleService) {
		s.httpClient = client
	}
}

// GoogleService wraps the Google authorization-code flows: building
// authorization URLs and exchanging callback codes for verified identities.
type GoogleService struct {
	cfg        GoogleConfig
	endpoint   oauth2.Endpoint
	verifier   IdentityVerifier
	httpClient *http.Client
}

// NewGoogleService validates the registration and constructs the service.
func NewGoogleService(cfg GoogleConfig, opts ...GoogleOption) (*GoogleService, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("google: client secret is required")
	}

	svc := &GoogleService{
		cfg:      cfg,
		endpoint: google.Endpoint,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.verifier == nil {
		svc.verifier = newOIDCVerifier(cfg.ClientID, svc.httpClient)
	}

	return svc, nil
}

// LoginAuthURL returns a fresh authorization URL for the main sign-in flow.
// No state parameter is set: the callback treats an absent state as login.
func (s *GoogleService) LoginAuthURL() string {
	return s.loginConfig().AuthCodeURL("")
}

// GmailAuthURL returns a fresh authorization URL for connecting a mailbox.
// The flow kind rides along as the state parameter so the callback page can
// branch without any server-side session.
func (s *GoogleService) GmailAuthURL(flow FlowKind) string {
	return s.gmailConfig().AuthCodeURL(string(flow),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeLogin redeems a sign-in authorization code for a verified identity.
func (s *GoogleService) ExchangeLogin(ctx context.Context, code string) (*Identity, error) {
	identity, _, err := s.exchange(ctx, s.loginConfig(), code)
	return identity, err
}

// ExchangeGmail redeems a mailbox-connection authorization code. The returned
// token carries the refresh token that is stored (encrypted) with the account.
func (s *GoogleService) ExchangeGmail(ctx context.Context, code string) (*Identity, *oauth2.Token, error) {
	return s.exchange(ctx, s.gmailConfig(), code)
}

func (s *GoogleService) exchange(ctx context.Context, cfg *oauth2.Config, code string) (*Identity, *oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, errors.New("google: authorization code is required")
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("google: exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, nil, errors.New("google: token response missing id_token")
	}

	identity, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("google: verify id token: %w", err)
	}

	return identity, token, nil
}

func (s *GoogleService) loginConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		Endpoint:     s.endpoint,
		RedirectURL:  s.cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
}

func (s *GoogleService) gmailConfig() *oauth2.Config {
	scopes := s.cfg.GmailScopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/gmail.readonly", oidc.ScopeOpenID, "email", "profile"}
	}

	redirect := s.cfg.GmailRedirectURL
	if redirect == "" {
		redirect = s.cfg.RedirectURL
	}

	return &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		Endpoint:     s.endpoint,
		RedirectURL:  redirect,
		Scopes:       scopes,
	}
}

// oidcVerifier verifies Google ID tokens against the public issuer. Provider
// discovery is deferred until the first verification so construction never
// touches the network.
type oidcVerifier struct {
	clientID   string
	httpClient *http.Client

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func newOIDCVerifier(clientID string, httpClient *http.Client) *oidcVerifier {
	return &oidcVerifier{clientID: clientID, httpClient: httpClient}
}

func (v *oidcVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	verifier, err := v.tokenVerifier(ctx)
	if err != nil {
		return nil, err
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, errors.New("id token missing subject or email")
	}

	return &Identity{
		GoogleID: claims.Sub,
		Email:    strings.ToLower(claims.Email),
		Name:     claims.Name,
		Picture:  claims.Picture,
	}, nil
}

func (v *oidcVerifier) tokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifier != nil {
		return v.verifier, nil
	}

	if v.httpClient != nil {
		ctx = oidc.ClientContext(ctx, v.httpClient)
	}
	discoveryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.clientID})
	return v.verifier, nil
}
