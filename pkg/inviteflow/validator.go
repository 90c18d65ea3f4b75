package inviteflow

import (
	"context"
	"sync"
)

// Messages shown by the validation screen when the backend cannot supply one.
const (
	msgMissingToken = "Invalid invite link"
	msgTypeMismatch = "This is not an email account addition invite link"
	msgValidateFail = "Failed to validate invite"
)

// Validator drives the invite-landing state machine:
// loading -> {valid | invalid | expired | error}.
type Validator struct {
	client       *Client
	expectedType string

	mu      sync.Mutex
	state   InviteState
	result  *ValidationResult
	message string
}

// ValidatorOption customises a Validator.
type ValidatorOption func(*Validator)

// WithExpectedType pins the invite type the hosting screen can handle. A
// backend-valid invite of any other type resolves to invalid.
func WithExpectedType(inviteType string) ValidatorOption {
	return func(v *Validator) {
		v.expectedType = inviteType
	}
}

// NewValidator constructs a Validator in the loading state.
func NewValidator(client *Client, opts ...ValidatorOption) *Validator {
	v := &Validator{client: client, state: InviteStateLoading}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run validates the token and settles the state machine. An empty token
// resolves to invalid without any network call. Transport failures resolve to
// the error state; they are recovered into UI state, never propagated.
func (v *Validator) Run(ctx context.Context, token string) InviteState {
	if token == "" {
		return v.settle(InviteStateInvalid, nil, msgMissingToken)
	}

	v.mu.Lock()
	v.state = InviteStateLoading
	v.mu.Unlock()

	result, err := v.client.ValidateInvite(ctx, token)
	if err != nil {
		message := msgValidateFail
		if apiErr, ok := err.(*APIError); ok && apiErr.Detail != "" {
			message = apiErr.Detail
		}
		return v.settle(InviteStateError, nil, message)
	}

	if !result.Valid {
		state := InviteStateInvalid
		if result.Reason == "expired" {
			state = InviteStateExpired
		}
		return v.settle(state, result, result.Message)
	}

	if v.expectedType != "" && result.InviteType != v.expectedType {
		return v.settle(InviteStateInvalid, result, msgTypeMismatch)
	}

	return v.settle(InviteStateValid, result, "")
}

// State returns the current state.
func (v *Validator) State() InviteState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Result returns the last backend validation result, if any.
func (v *Validator) Result() *ValidationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result
}

// Message returns the user-visible message for the current state.
func (v *Validator) Message() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.message
}

func (v *Validator) settle(state InviteState, result *ValidationResult, message string) InviteState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = state
	v.result = result
	v.message = message
	return state
}
