package inviteflow

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcceptorPublicSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/accept-public", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			InviteToken string `json:"invite_token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "tok-public", body.InviteToken)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(AcceptResult{Success: true, Message: "Invite accepted"})
	})

	client, _ := newTestClient(t, mux)
	a := NewAcceptor(client)

	state, err := a.AcceptPublic(context.Background(), "tok-public")
	require.NoError(t, err)
	require.Equal(t, AcceptanceStateSuccess, state)
}

func TestAcceptorRequiresSessionForAuthenticatedAccept(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/accept", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	client, _ := newTestClient(t, mux)
	a := NewAcceptor(client)

	_, err := a.Accept(context.Background(), "tok")
	require.ErrorIs(t, err, ErrLoginRequired)
	require.Equal(t, AcceptanceStateIdle, a.State())
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestAcceptorDoubleAcceptSurfacesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/accept-public", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Invite link has already been used"}`))
	})

	client, _ := newTestClient(t, mux)
	a := NewAcceptor(client)

	state, err := a.AcceptPublic(context.Background(), "tok-used")
	require.NoError(t, err)
	require.Equal(t, AcceptanceStateError, state)
	require.Equal(t, "Invite link has already been used", a.Message())

	// A fresh attempt is possible after an explicit reset.
	a.Reset()
	require.Equal(t, AcceptanceStateIdle, a.State())
}

func TestAcceptorSingleInFlightRequest(t *testing.T) {
	var calls int32
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/accept-public", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(AcceptResult{Success: true})
	})

	client, _ := newTestClient(t, mux)
	a := NewAcceptor(client)

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		state, err := a.AcceptPublic(context.Background(), "tok")
		require.NoError(t, err)
		require.Equal(t, AcceptanceStateSuccess, state)
	}()

	<-started
	// Wait until the first request is in flight on the server.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, testWaitTimeout, testPollInterval)

	// A second trigger while accepting must be a no-op.
	state, err := a.AcceptPublic(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, AcceptanceStateAccepting, state)

	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAcceptorErrorFallbackMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/accept-public", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, mux)
	a := NewAcceptor(client)

	state, err := a.AcceptPublic(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, AcceptanceStateError, state)
	require.Equal(t, "Failed to accept invite", a.Message())
}
