// Package inviteflow implements the client side of the invite lifecycle and
// the OAuth handoff that connects a mailbox after an invite is redeemed. It is
// the programmatic equivalent of the browser screens: validate an invite link,
// accept it, carry a correlation token across the provider redirect, and
// exchange the authorization code exactly once on the way back.
package inviteflow

// InviteState is the landing-screen state machine for invite validation.
type InviteState string

const (
	InviteStateLoading InviteState = "loading"
	InviteStateValid   InviteState = "valid"
	InviteStateInvalid InviteState = "invalid"
	InviteStateExpired InviteState = "expired"
	InviteStateError   InviteState = "error"
)

// AcceptanceState tracks an invite acceptance attempt.
type AcceptanceState string

const (
	AcceptanceStateIdle      AcceptanceState = "idle"
	AcceptanceStateAccepting AcceptanceState = "accepting"
	AcceptanceStateSuccess   AcceptanceState = "success"
	AcceptanceStateError     AcceptanceState = "error"
)

// CallbackState is the OAuth callback page state machine. Both success and
// error are terminal for a given page load.
type CallbackState string

const (
	CallbackStateProcessing CallbackState = "processing"
	CallbackStateSuccess    CallbackState = "success"
	CallbackStateError      CallbackState = "error"
)

// Invite types mirror the server-side enumeration.
const (
	InviteTypeShareAccess     = "share_access"
	InviteTypeAddEmailAccount = "add_email_account"
)

// Flow discriminates which OAuth flow a callback belongs to, carried through
// the provider redirect as the `state` query parameter.
type Flow string

const (
	FlowMainLogin          Flow = ""
	FlowEmailAccount       Flow = "email_account_oauth"
	FlowEmailAccountPublic Flow = "email_account_oauth_public"
)

// ParseFlow maps a raw state parameter onto the closed flow enumeration.
// An absent state means main login; anything unrecognised is rejected rather
// than treated as a free-form string.
func ParseFlow(state string) (Flow, bool) {
	switch Flow(state) {
	case FlowMainLogin, FlowEmailAccount, FlowEmailAccountPublic:
		return Flow(state), true
	default:
		return FlowMainLogin, false
	}
}
