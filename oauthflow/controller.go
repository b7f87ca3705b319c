package oauthflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
	"github.com/jrsteele09/go-frontdoor-relay/internal/metrics"
	"github.com/jrsteele09/go-frontdoor-relay/oauth2"
	"github.com/jrsteele09/go-frontdoor-relay/provider"
	"github.com/jrsteele09/go-frontdoor-relay/sessions"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

// CodeExchanger trades an authorization code for tokens.
type CodeExchanger interface {
	ExchangeAuthorizationCode(ctx context.Context, code string) provider.CodeExchange
}

// Settings identify the OAuth client at the provider.
type Settings struct {
	LoginURL    string
	ClientID    string
	RedirectURI string
	Scopes      []string
}

// Controller runs the authorization code flow: the redirect to the provider,
// the callback exchange and the logout.
type Controller struct {
	oauthConfig *xoauth2.Config
	exchanger   CodeExchanger
	sessions    sessions.Repo
	nowFunc     func() time.Time
}

type Option func(*Controller)

func WithNowFunc(now func() time.Time) Option {
	return func(c *Controller) {
		c.nowFunc = now
	}
}

func New(settings Settings, exchanger CodeExchanger, repo sessions.Repo, options ...Option) *Controller {
	loginURL := strings.TrimRight(settings.LoginURL, "/")
	c := &Controller{
		oauthConfig: &xoauth2.Config{
			ClientID:    settings.ClientID,
			RedirectURL: settings.RedirectURI,
			Scopes:      settings.Scopes,
			Endpoint: xoauth2.Endpoint{
				AuthURL: loginURL + oauth2.AuthorizePath,
			},
		},
		exchanger: exchanger,
		sessions:  repo,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// AuthorizeURL is where the browser is sent to start the flow. It carries
// response_type=code, client_id, redirect_uri and scope, and no state.
func (c *Controller) AuthorizeURL() string {
	return c.oauthConfig.AuthCodeURL("")
}

// Complete exchanges the callback code and binds the tokens to sessionID.
// The session is only written when the exchange fully succeeds.
func (c *Controller) Complete(ctx context.Context, sessionID, code string) (*sessions.Record, error) {
	if code == "" {
		metrics.CallbacksCompleted.WithLabelValues("missing_code").Inc()
		return nil, apperrors.ErrMissingCode
	}

	result := c.exchanger.ExchangeAuthorizationCode(ctx, code)
	if !result.OK() {
		metrics.CallbacksCompleted.WithLabelValues("exchange_failed").Inc()
		log.Error().
			Err(result.Err).
			Str("outcome", string(result.Outcome)).
			Int("status", result.StatusCode).
			Str("location", result.Location).
			Str("provider_error", result.ProviderError).
			Str("provider_error_description", result.ProviderErrorDescription).
			Msg("Callback: token exchange failed")
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTokenExchangeFailed, result.Outcome)
	}

	record := sessions.Record{
		ID:         sessionID,
		AuthTokens: authTokens(result.Tokens, c.nowFunc()),
		CreatedAt:  c.nowFunc(),
	}
	if err := c.sessions.Upsert(ctx, sessionID, record); err != nil {
		metrics.CallbacksCompleted.WithLabelValues("store_failed").Inc()
		log.Err(err).Msg("Callback: failed to store session")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenExchangeFailed, err)
	}

	metrics.CallbacksCompleted.WithLabelValues("authenticated").Inc()
	log.Info().Str("instance_url", record.AuthTokens.InstanceURL).Msg("Callback: session authenticated")
	return &record, nil
}

// Logout destroys the session bound to sessionID.
func (c *Controller) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return apperrors.Wrapf(c.sessions.Delete(ctx, sessionID), "[oauthflow Logout] delete session")
}

func authTokens(t *provider.Tokens, now time.Time) *sessions.AuthTokens {
	issuedAt := t.IssuedAt
	if issuedAt == nil {
		issuedAt = &now
	}
	return &sessions.AuthTokens{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		InstanceURL:  t.InstanceURL,
		IdentityID:   t.IdentityID,
		IDToken:      t.IDToken,
		IssuedAt:     issuedAt,
	}
}
