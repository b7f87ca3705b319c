package frontdoor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
	"github.com/jrsteele09/go-frontdoor-relay/internal/metrics"
	"github.com/jrsteele09/go-frontdoor-relay/oauth2"
	"github.com/jrsteele09/go-frontdoor-relay/provider"
	"github.com/jrsteele09/go-frontdoor-relay/sessions"
	"github.com/rs/zerolog/log"
)

// SingleAccessExchanger converts an access token into a one-time front door URI.
type SingleAccessExchanger interface {
	ExchangeForSingleAccess(ctx context.Context, accessToken, instanceURL string) provider.SingleAccess
}

// Result is a derived front door URL.
type Result struct {
	URL string

	// Fallback marks a URL built locally with the access token as the sid.
	// It is lower assurance than one issued by the provider.
	Fallback bool
}

// Broker derives front door URLs for authenticated sessions.
type Broker struct {
	exchanger SingleAccessExchanger
}

func New(exchanger SingleAccessExchanger) *Broker {
	return &Broker{exchanger: exchanger}
}

// Derive returns a one-time URL that opens the provider already signed in.
//
// A transport failure of the single-access call is an error. A call that
// completes but yields no usable URI, including a provider that rejects or
// does not support the endpoint, falls back to FallbackURL.
func (b *Broker) Derive(ctx context.Context, record *sessions.Record) (Result, error) {
	if !record.Authenticated() {
		return Result{}, apperrors.ErrNotAuthenticated
	}
	tokens := record.AuthTokens

	sa := b.exchanger.ExchangeForSingleAccess(ctx, tokens.AccessToken, tokens.InstanceURL)
	if sa.Outcome == provider.OutcomeTransportFailure {
		log.Error().
			Err(sa.Err).
			Int("status", sa.StatusCode).
			Str("instance_url", tokens.InstanceURL).
			Msg("Front door: single access exchange failed")
		return Result{}, fmt.Errorf("%w: %v", apperrors.ErrSingleAccessFailed, sa.Err)
	}

	if sa.URI != nil {
		if absolute, ok := Absolute(tokens.InstanceURL, *sa.URI); ok {
			metrics.FrontDoorURLs.WithLabelValues("exchange").Inc()
			return Result{URL: absolute}, nil
		}
	}

	log.Warn().
		AnErr("cause", sa.Err).
		Str("outcome", string(sa.Outcome)).
		Int("status", sa.StatusCode).
		Str("location", sa.Location).
		Str("instance_url", tokens.InstanceURL).
		Msg("Front door: no single access URI, using sid fallback")
	metrics.FrontDoorURLs.WithLabelValues("fallback").Inc()
	return Result{URL: FallbackURL(tokens.InstanceURL, tokens.AccessToken), Fallback: true}, nil
}

// FallbackURL builds <instanceURL>/secur/frontdoor.jsp?sid=<token>.
func FallbackURL(instanceURL, accessToken string) string {
	return strings.TrimRight(instanceURL, "/") + oauth2.FrontDoorPath + "?sid=" + url.QueryEscape(accessToken)
}

// Absolute resolves a provider URI against the instance URL. Paths are
// prefixed with the instance URL, absolute http(s) URLs are kept as they are.
func Absolute(instanceURL, uri string) (string, bool) {
	uri = strings.TrimSpace(uri)
	if strings.HasPrefix(uri, "/") && !strings.HasPrefix(uri, "//") {
		return strings.TrimRight(instanceURL, "/") + uri, true
	}
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", false
	}
	return uri, true
}
