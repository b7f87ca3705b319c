package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// sessionCookieName carries the signed session id
	sessionCookieName = "frontdoor_sid"
)

// newSessionID creates an opaque session identifier
func newSessionID() string {
	return uuid.New().String()
}

// sessionIDFromRequest returns the verified session id carried by the cookie,
// or "" when the cookie is absent, tampered with or expired.
func (s *Server) sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	var sessionID string
	if err := s.cookies.Decode(sessionCookieName, cookie.Value, &sessionID); err != nil {
		log.Debug().Err(err).Msg("Ignoring invalid session cookie")
		return ""
	}
	return sessionID
}

// SetSessionCookie binds the browser to sessionID. In cross-site mode the
// cookie is SameSite=None and Secure so it is sent from inside a third-party iframe.
func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) error {
	encoded, err := s.cookies.Encode(sessionCookieName, sessionID)
	if err != nil {
		return err
	}

	cookie := s.baseCookie(r)
	cookie.Value = encoded
	cookie.MaxAge = int(s.config.GetSessionTTL().Seconds())
	http.SetCookie(w, cookie)
	return nil
}

// ClearSessionCookie expires the session cookie in the browser.
func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	cookie := s.baseCookie(r)
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func (s *Server) baseCookie(r *http.Request) *http.Cookie {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	}
	if s.config.GetCookieCrossSite() {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	return cookie
}
