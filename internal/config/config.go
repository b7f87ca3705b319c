package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig

	// MissingOAuthSettings names the provider settings that are not configured.
	MissingOAuthSettings() []string
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetStaticDir() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Store
}

// New loads the configuration from the process environment.
func New() (Config, error) {
	c := mainConfig{}
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config New] parse env: %w", err)
	}
	return c, nil
}

// FromMap loads the configuration from the supplied variables instead of the
// process environment. Unset variables take their defaults.
func FromMap(vars map[string]string) (Config, error) {
	c := mainConfig{}
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("[config FromMap] parse env: %w", err)
	}
	return c, nil
}

func (c mainConfig) MissingOAuthSettings() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, clientIDVar)
	}
	if c.ClientSecret == "" {
		missing = append(missing, clientSecretVar)
	}
	if c.RedirectURI == "" {
		missing = append(missing, redirectURIVar)
	}
	return missing
}
