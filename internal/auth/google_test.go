package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type staticVerifier struct {
	identity Identity
}

func (s *staticVerifier) Verify(context.Context, string) (*Identity, error) {
	identity := s.identity
	return &identity, nil
}

func newFakeTokenServer(t *testing.T, body string) oauth2.Endpoint {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: server.URL,
	}
}

func TestParseFlowKind(t *testing.T) {
	flow, err := ParseFlowKind("")
	require.NoError(t, err)
	require.Equal(t, FlowLogin, flow)

	flow, err = ParseFlowKind("email_account_oauth")
	require.NoError(t, err)
	require.Equal(t, FlowEmailAccount, flow)

	flow, err = ParseFlowKind("email_account_oauth_public")
	require.NoError(t, err)
	require.Equal(t, FlowEmailAccountPublic, flow)

	_, err = ParseFlowKind("unknown")
	require.Error(t, err)
}

func TestGmailAuthURLCarriesFlowState(t *testing.T) {
	svc, err := NewGoogleService(GoogleConfig{
		ClientID:         "cid",
		ClientSecret:     "secret",
		GmailRedirectURL: "http://localhost:5173/oauth/callback",
	}, WithIdentityVerifier(&staticVerifier{}))
	require.NoError(t, err)

	authURL := svc.GmailAuthURL(FlowEmailAccountPublic)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	query := parsed.Query()
	require.Equal(t, "email_account_oauth_public", query.Get("state"))
	require.Equal(t, "offline", query.Get("access_type"))
	require.Equal(t, "consent", query.Get("prompt"))
	require.Equal(t, "http://localhost:5173/oauth/callback", query.Get("redirect_uri"))
}

func TestLoginAuthURLHasNoState(t *testing.T) {
	svc, err := NewGoogleService(GoogleConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:5173/auth/callback",
	}, WithIdentityVerifier(&staticVerifier{}))
	require.NoError(t, err)

	parsed, err := url.Parse(svc.LoginAuthURL())
	require.NoError(t, err)
	require.Empty(t, parsed.Query().Get("state"))
}

func TestExchangeGmailReturnsIdentityAndRefreshToken(t *testing.T) {
	endpoint := newFakeTokenServer(t, `{
		"access_token": "at",
		"refresh_token": "rt",
		"id_token": "idt",
		"token_type": "Bearer"
	}`)

	svc, err := NewGoogleService(GoogleConfig{ClientID: "cid", ClientSecret: "secret"},
		WithEndpoint(endpoint),
		WithIdentityVerifier(&staticVerifier{identity: Identity{
			GoogleID: "g-1",
			Email:    "box@example.com",
		}}),
	)
	require.NoError(t, err)

	identity, token, err := svc.ExchangeGmail(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, "box@example.com", identity.Email)
	require.Equal(t, "rt", token.RefreshToken)
}

func TestExchangeRejectsMissingIDToken(t *testing.T) {
	endpoint := newFakeTokenServer(t, `{"access_token": "at", "token_type": "Bearer"}`)

	svc, err := NewGoogleService(GoogleConfig{ClientID: "cid", ClientSecret: "secret"},
		WithEndpoint(endpoint),
		WithIdentityVerifier(&staticVerifier{}),
	)
	require.NoError(t, err)

	_, err = svc.ExchangeLogin(context.Background(), "code-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "id_token")
}

func TestExchangeRejectsEmptyCode(t *testing.T) {
	svc, err := NewGoogleService(GoogleConfig{ClientID: "cid", ClientSecret: "secret"},
		WithIdentityVerifier(&staticVerifier{}))
	require.NoError(t, err)

	_, err = svc.ExchangeLogin(context.Background(), "   ")
	require.Error(t, err)
}

func TestGoogleServiceRequiresRegistration(t *testing.T) {
	_, err := NewGoogleService(GoogleConfig{})
	require.Error(t, err)
	_, err = NewGoogleService(GoogleConfig{ClientID: "cid"})
	require.Error(t, err)
}
