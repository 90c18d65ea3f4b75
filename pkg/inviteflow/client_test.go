package inviteflow

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientClearsSessionOnUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/accept", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Authentication required"}`))
	})

	client, store := newTestClient(t, mux)
	store.Set(KeyAccessToken, "stale-jwt")
	store.Set(KeyUser, `{"id":"u1"}`)

	_, err := client.AcceptInvite(context.Background(), "tok")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	require.False(t, client.Authenticated())
	_, ok := store.Get(KeyUser)
	require.False(t, ok)
}

func TestClientKeepsSessionOnPublicUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/accept-public", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, store := newTestClient(t, mux)
	store.Set(KeyAccessToken, "jwt")

	_, err := client.AcceptInvitePublic(context.Background(), "tok")
	require.Error(t, err)
	require.True(t, client.Authenticated())
}

func TestClientSendsBearerToken(t *testing.T) {
	var seen string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/email-accounts/oauth/google/url", func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"auth_url":"https://accounts.google.com/o/oauth2/auth"}`))
	})

	client, store := newTestClient(t, mux)
	store.Set(KeyAccessToken, "jwt-abc")

	authURL, err := client.AuthorizationURL(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, authURL)
	require.Equal(t, "Bearer jwt-abc", seen)
}

func TestClientAPIErrorDetailParsing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/validate/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`not json`))
	})

	client, _ := newTestClient(t, mux)
	_, err := client.ValidateInvite(context.Background(), "tok")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.Empty(t, apiErr.Detail)
}

func TestLogoutClearsDurableIdentity(t *testing.T) {
	client, store := newTestClient(t, http.NewServeMux())
	store.Set(KeyAccessToken, "jwt")
	store.Set(KeyUser, `{"id":"u1"}`)
	store.Set(KeyPendingInviteToken, "tok")

	client.Logout()

	require.False(t, client.Authenticated())
	// Logout clears identity only; a pending invite correlation survives.
	_, ok := store.Get(KeyPendingInviteToken)
	require.True(t, ok)
}

func TestParseFlowClosedEnumeration(t *testing.T) {
	flow, ok := ParseFlow("")
	require.True(t, ok)
	require.Equal(t, FlowMainLogin, flow)

	flow, ok = ParseFlow("email_account_oauth")
	require.True(t, ok)
	require.Equal(t, FlowEmailAccount, flow)

	flow, ok = ParseFlow("email_account_oauth_public")
	require.True(t, ok)
	require.Equal(t, FlowEmailAccountPublic, flow)

	_, ok = ParseFlow("garbage")
	require.False(t, ok)
}
