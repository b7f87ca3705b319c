package config

import (
	"strings"
	"time"
)

const (
	clientIDVar     = "SF_CLIENT_ID"
	clientSecretVar = "SF_CLIENT_SECRET"
	redirectURIVar  = "SF_REDIRECT_URI"

	// DefaultLoginURL is the production login host of the provider.
	DefaultLoginURL = "https://login.salesforce.com"
)

type OAuthConfig interface {
	GetLoginURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetProviderTimeout() time.Duration
}

type OAuth struct {
	LoginURL        string        `env:"SF_LOGIN_URL" envDefault:"https://login.salesforce.com"`
	ClientID        string        `env:"SF_CLIENT_ID"`
	ClientSecret    string        `env:"SF_CLIENT_SECRET"`
	RedirectURI     string        `env:"SF_REDIRECT_URI"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetLoginURL() string {
	if o.LoginURL == "" {
		return DefaultLoginURL
	}
	return strings.TrimRight(o.LoginURL, "/")
}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetRedirectURI() string {
	return o.RedirectURI
}

// GetScopes grants web access, refresh capability and identity claims.
func (OAuth) GetScopes() []string {
	return []string{"web", "refresh_token", "openid"}
}

func (o OAuth) GetProviderTimeout() time.Duration {
	if o.ProviderTimeout <= 0 {
		return 10 * time.Second
	}
	return o.ProviderTimeout
}
