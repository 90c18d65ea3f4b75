package inviteflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAlreadyProcessed reports a second ProcessCallback on the same
// Coordinator. The exchange must run exactly once per callback page load even
// when the surrounding machinery invokes it twice.
var ErrAlreadyProcessed = errors.New("inviteflow: callback already processed")

// Post-callback destinations.
const (
	RouteDashboard     = "/dashboard"
	RouteEmailAccounts = "/email-accounts"
	RouteInviteSuccess = "/invite-success"
)

// Display delays before auto-navigating away from the confirmation screen.
const (
	loginSuccessDelay   = 3 * time.Second
	inviteSuccessDelay  = 3 * time.Second
	connectSuccessDelay = 2 * time.Second
)

// Messages shown by the callback screen.
const (
	msgProviderError = "OAuth error: %s"
	msgMissingCode   = "No authorization code received from Google"
	msgUnknownState  = "Unrecognized OAuth state"
	msgExchangeFail  = "Failed to complete authentication"
)

// CallbackParams are the query parameters of the provider redirect.
type CallbackParams struct {
	Code      string
	State     string
	ErrorCode string
}

// Navigation tells the UI where to go once the callback settles, and how long
// to show the confirmation first.
type Navigation struct {
	Route string
	Email string
	Delay time.Duration
}

// Coordinator correlates a redeemed invite with the OAuth exchange that
// actually connects the mailbox. The invite token is stashed in session
// storage immediately before the redirect out, because the provider's
// redirect back carries no invite context of its own, and is read exactly
// once after a successful exchange.
type Coordinator struct {
	client *Client

	mu        sync.Mutex
	processed bool
	state     CallbackState
	message   string
}

// NewCoordinator constructs a Coordinator for one callback page load.
func NewCoordinator(client *Client) *Coordinator {
	return &Coordinator{client: client, state: CallbackStateProcessing}
}

// BeginConnect fetches a fresh authorization URL for the mailbox-connection
// flow and, when an invite token is supplied, writes the correlation token
// before handing back the redirect target. The write happens last so a failed
// URL fetch leaves no stale token behind.
func (co *Coordinator) BeginConnect(ctx context.Context, inviteToken string, public bool) (string, error) {
	var (
		authURL string
		err     error
	)
	if public {
		authURL, err = co.client.AuthorizationURLPublic(ctx)
	} else {
		authURL, err = co.client.AuthorizationURL(ctx)
	}
	if err != nil {
		return "", err
	}

	if inviteToken != "" {
		co.client.Store().Set(KeyPendingInviteToken, inviteToken)
	}
	return authURL, nil
}

// ProcessCallback runs the callback page logic: branch on the flow
// discriminator, exchange the authorization code at most once, and derive the
// navigation target. A provider error or missing code is terminal and issues
// no exchange at all. The second and later invocations return
// ErrAlreadyProcessed without touching the network.
func (co *Coordinator) ProcessCallback(ctx context.Context, params CallbackParams) (*Navigation, error) {
	co.mu.Lock()
	if co.processed {
		co.mu.Unlock()
		return nil, ErrAlreadyProcessed
	}
	co.processed = true
	co.state = CallbackStateProcessing
	co.mu.Unlock()

	if params.ErrorCode != "" {
		return nil, co.fail(fmt.Sprintf(msgProviderError, params.ErrorCode))
	}
	if params.Code == "" {
		return nil, co.fail(msgMissingCode)
	}

	flow, ok := ParseFlow(params.State)
	if !ok {
		return nil, co.fail(msgUnknownState)
	}

	switch flow {
	case FlowMainLogin:
		return co.finishLogin(ctx, params.Code)
	case FlowEmailAccount:
		return co.finishConnect(ctx, params.Code, false)
	default:
		return co.finishConnect(ctx, params.Code, true)
	}
}

// State returns the current callback state.
func (co *Coordinator) State() CallbackState {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.state
}

// Message returns the user-visible message for the current state.
func (co *Coordinator) Message() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.message
}

func (co *Coordinator) finishLogin(ctx context.Context, code string) (*Navigation, error) {
	if _, err := co.client.ExchangeLogin(ctx, code); err != nil {
		return nil, co.fail(exchangeMessage(err))
	}

	co.succeed("")
	return &Navigation{Route: RouteDashboard, Delay: loginSuccessDelay}, nil
}

func (co *Coordinator) finishConnect(ctx context.Context, code string, public bool) (*Navigation, error) {
	var (
		result *ConnectResult
		err    error
	)
	if public {
		result, err = co.client.ExchangeConnectPublic(ctx, code)
	} else {
		result, err = co.client.ExchangeConnect(ctx, code)
	}
	if err != nil {
		return nil, co.fail(exchangeMessage(err))
	}

	co.succeed(result.Message)

	// The correlation token is consumed only after a successful exchange:
	// present means this was an invited-user flow, absent means a direct
	// (already-onboarded) user adding a mailbox.
	if _, invited := co.takeCorrelationToken(); invited {
		return &Navigation{Route: RouteInviteSuccess, Email: result.Email, Delay: inviteSuccessDelay}, nil
	}
	return &Navigation{Route: RouteEmailAccounts, Delay: connectSuccessDelay}, nil
}

// takeCorrelationToken reads and removes the pending invite token. Read-once:
// a second call always reports absent.
func (co *Coordinator) takeCorrelationToken() (string, bool) {
	store := co.client.Store()
	token, ok := store.Get(KeyPendingInviteToken)
	if !ok || token == "" {
		return "", false
	}
	store.Delete(KeyPendingInviteToken)
	return token, true
}

func (co *Coordinator) fail(message string) error {
	co.mu.Lock()
	co.state = CallbackStateError
	co.message = message
	co.mu.Unlock()
	return errors.New(message)
}

func (co *Coordinator) succeed(message string) {
	co.mu.Lock()
	co.state = CallbackStateSuccess
	co.message = message
	co.mu.Unlock()
}

func exchangeMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return msgExchangeFail
}
