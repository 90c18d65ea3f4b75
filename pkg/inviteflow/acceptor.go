package inviteflow

import (
	"context"
	"errors"
	"sync"
)

// ErrLoginRequired signals that authenticated acceptance was attempted with
// no session. The caller must run the login flow first and retry; this is a
// precondition, not a failure state.
var ErrLoginRequired = errors.New("inviteflow: login required before accepting")

const msgAcceptFail = "Failed to accept invite"

// Acceptor redeems an invite with at most one request in flight. Triggering
// Accept while a prior call is outstanding is a no-op that reports the
// current accepting state.
type Acceptor struct {
	client *Client

	mu      sync.Mutex
	state   AcceptanceState
	message string
}

// NewAcceptor constructs an Acceptor in the idle state.
func NewAcceptor(client *Client) *Acceptor {
	return &Acceptor{client: client, state: AcceptanceStateIdle}
}

// Accept redeems the invite as the signed-in user. Returns ErrLoginRequired
// when no session exists so the caller can defer to the login flow.
func (a *Acceptor) Accept(ctx context.Context, token string) (AcceptanceState, error) {
	if !a.client.Authenticated() {
		return a.State(), ErrLoginRequired
	}
	return a.run(ctx, token, a.client.AcceptInvite)
}

// AcceptPublic redeems an add-email invite with no session at all.
func (a *Acceptor) AcceptPublic(ctx context.Context, token string) (AcceptanceState, error) {
	return a.run(ctx, token, a.client.AcceptInvitePublic)
}

func (a *Acceptor) run(ctx context.Context, token string, call func(context.Context, string) (*AcceptResult, error)) (AcceptanceState, error) {
	a.mu.Lock()
	if a.state == AcceptanceStateAccepting {
		a.mu.Unlock()
		return AcceptanceStateAccepting, nil
	}
	a.state = AcceptanceStateAccepting
	a.message = ""
	a.mu.Unlock()

	result, err := call(ctx, token)
	if err != nil {
		message := msgAcceptFail
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			message = apiErr.Detail
		}
		return a.settle(AcceptanceStateError, message), nil
	}
	if !result.Success {
		message := result.Message
		if message == "" {
			message = msgAcceptFail
		}
		return a.settle(AcceptanceStateError, message), nil
	}

	return a.settle(AcceptanceStateSuccess, result.Message), nil
}

// Reset returns an errored acceptor to idle so a fresh attempt can be made.
func (a *Acceptor) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != AcceptanceStateAccepting {
		a.state = AcceptanceStateIdle
		a.message = ""
	}
}

// State returns the current state.
func (a *Acceptor) State() AcceptanceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Message returns the user-visible message for the current state.
func (a *Acceptor) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

func (a *Acceptor) settle(state AcceptanceState, message string) AcceptanceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	a.message = message
	return state
}
