package provider

import "time"

// Outcome classifies a provider call so callers can tell a provider that said
// no from a call that never produced a usable answer.
type Outcome string

const (
	// OutcomeSuccess is a 2xx response that passed validation.
	OutcomeSuccess Outcome = "success"

	// OutcomeRejected is an inspectable non-success status below 500,
	// including redirects, which are never followed.
	OutcomeRejected Outcome = "rejected"

	// OutcomeMalformed is a success status whose body failed validation.
	OutcomeMalformed Outcome = "malformed"

	// OutcomeTransportFailure covers network errors, timeouts and 5xx statuses.
	OutcomeTransportFailure Outcome = "transport_failure"
)

// Tokens is the validated result of an authorization code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken *string
	InstanceURL  string
	IdentityID   *string
	IDToken      *string
	IssuedAt     *time.Time
}

// CodeExchange is the tagged result of ExchangeAuthorizationCode.
type CodeExchange struct {
	Outcome    Outcome
	StatusCode int

	// Location is captured from redirect responses for diagnostics.
	Location string

	// ProviderError and ProviderErrorDescription come from a rejection body.
	ProviderError            string
	ProviderErrorDescription string

	// Tokens is set only when Outcome is OutcomeSuccess.
	Tokens *Tokens

	// Err describes why the call did not succeed. Server-side diagnostics only.
	Err error
}

func (c CodeExchange) OK() bool {
	return c.Outcome == OutcomeSuccess && c.Tokens != nil
}

// SingleAccess is the tagged result of ExchangeForSingleAccess.
type SingleAccess struct {
	Outcome    Outcome
	StatusCode int
	Location   string

	// URI is the one-time front door URI when the provider issued one. It may
	// be absolute or a path relative to the instance URL.
	URI *string

	Err error
}
