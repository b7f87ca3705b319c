package sessions

import (
	"fmt"
	"net/url"
	"time"

	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
)

// AuthTokens are the provider credentials bound to a browser session. They are
// only ever written as a complete set: an access token together with the
// absolute instance URL it is valid for.
type AuthTokens struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken *string    `json:"refresh_token,omitempty"`
	InstanceURL  string     `json:"instance_url"`
	IdentityID   *string    `json:"identity_id,omitempty"`
	IDToken      *string    `json:"id_token,omitempty"` // not verified
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
}

// Validate rejects partial token sets.
func (t *AuthTokens) Validate() error {
	if t == nil {
		return nil
	}
	if t.AccessToken == "" {
		return fmt.Errorf("%w: access token is empty", apperrors.ErrInvalidSession)
	}
	u, err := url.Parse(t.InstanceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: instance url %q is not absolute", apperrors.ErrInvalidSession, t.InstanceURL)
	}
	return nil
}

// Record is the server-side state behind a session cookie.
type Record struct {
	ID         string      `json:"id"`
	AuthTokens *AuthTokens `json:"auth_tokens,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// Authenticated reports whether the record holds a usable token pair.
func (r *Record) Authenticated() bool {
	return r != nil && r.AuthTokens != nil && r.AuthTokens.AccessToken != "" && r.AuthTokens.InstanceURL != ""
}

// Status is the browser-facing projection of a session. It never carries tokens.
type Status struct {
	Authenticated bool   `json:"authenticated"`
	InstanceURL   string `json:"instanceUrl,omitempty"`
}

// StatusOf projects a record, which may be nil, into its authentication status.
func StatusOf(r *Record) Status {
	if !r.Authenticated() {
		return Status{Authenticated: false}
	}
	return Status{Authenticated: true, InstanceURL: r.AuthTokens.InstanceURL}
}
