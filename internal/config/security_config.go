package config

import "time"

type SecurityConfig interface {
	GetSessionSecret() string
	GetSessionTTL() time.Duration
	GetCookieCrossSite() bool
	GetFrameAncestors() string
}

type Security struct {
	SessionSecret   string        `env:"SESSION_SECRET"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	CookieCrossSite bool          `env:"COOKIE_CROSS_SITE" envDefault:"true"`
	FrameAncestors  string        `env:"FRAME_ANCESTORS" envDefault:"'self' https://*.salesforce.com https://*.force.com https://*.lightning.force.com"`
}

var _ SecurityConfig = Security{}

func (s Security) GetSessionSecret() string {
	return s.SessionSecret
}

func (s Security) GetSessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return time.Hour
	}
	return s.SessionTTL
}

// GetCookieCrossSite reports whether the session cookie must survive a
// cross-site iframe, which forces SameSite=None and Secure.
func (s Security) GetCookieCrossSite() bool {
	return s.CookieCrossSite
}

func (s Security) GetFrameAncestors() string {
	return s.FrameAncestors
}
