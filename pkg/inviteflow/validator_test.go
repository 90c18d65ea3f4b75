package inviteflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *MemoryStore) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := NewMemoryStore()
	return NewClient(server.URL, store), store
}

func validationHandler(t *testing.T, result ValidationResult, calls *int32) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/validate/", func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(result))
	})
	return mux
}

func TestValidatorActiveInviteResolvesValid(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC()
	client, _ := newTestClient(t, validationHandler(t, ValidationResult{
		Valid:        true,
		InviteType:   InviteTypeAddEmailAccount,
		InvitedEmail: "new.user@example.com",
		ExpiresAt:    &expires,
	}, nil))

	v := NewValidator(client, WithExpectedType(InviteTypeAddEmailAccount))
	state := v.Run(context.Background(), "tok-active")

	require.Equal(t, InviteStateValid, state)
	require.NotNil(t, v.Result())
	require.Equal(t, "new.user@example.com", v.Result().InvitedEmail)
	require.Equal(t, InviteTypeAddEmailAccount, v.Result().InviteType)
}

func TestValidatorExpiredAndInvalidAreDistinct(t *testing.T) {
	cases := []struct {
		name      string
		result    ValidationResult
		wantState InviteState
	}{
		{
			name:      "expired",
			result:    ValidationResult{Valid: false, Reason: "expired", Message: "Invite link has expired"},
			wantState: InviteStateExpired,
		},
		{
			name:      "used",
			result:    ValidationResult{Valid: false, Reason: "used", Message: "Invite link has already been used"},
			wantState: InviteStateInvalid,
		},
		{
			name:      "unknown token",
			result:    ValidationResult{Valid: false, Reason: "not_found", Message: "Invite link is invalid"},
			wantState: InviteStateInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, validationHandler(t, tc.result, nil))

			v := NewValidator(client)
			require.Equal(t, tc.wantState, v.Run(context.Background(), "tok"))
			require.Equal(t, tc.result.Message, v.Message())
		})
	}
}

func TestValidatorRejectsTypeMismatch(t *testing.T) {
	// Backend says valid, but the hosting screen only handles add-email invites.
	client, _ := newTestClient(t, validationHandler(t, ValidationResult{
		Valid:      true,
		InviteType: InviteTypeShareAccess,
	}, nil))

	v := NewValidator(client, WithExpectedType(InviteTypeAddEmailAccount))
	state := v.Run(context.Background(), "tok-share")

	require.Equal(t, InviteStateInvalid, state)
	require.Equal(t, "This is not an email account addition invite link", v.Message())
}

func TestValidatorEmptyTokenSkipsNetwork(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, validationHandler(t, ValidationResult{Valid: true}, &calls))

	v := NewValidator(client)
	require.Equal(t, InviteStateInvalid, v.Run(context.Background(), ""))
	require.Equal(t, "Invalid invite link", v.Message())
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestValidatorTransportFailureResolvesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // guaranteed connection failure

	v := NewValidator(NewClient(server.URL, NewMemoryStore()))
	require.Equal(t, InviteStateError, v.Run(context.Background(), "tok"))
	require.NotEmpty(t, v.Message())
}
