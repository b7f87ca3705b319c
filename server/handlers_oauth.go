package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
	"github.com/rs/zerolog/log"
)

// AuthHandler starts the flow by redirecting to the provider's authorize endpoint
func (s *Server) AuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.flow.AuthorizeURL(), http.StatusFound)
	}
}

// OAuthCallbackHandler exchanges the authorization code and authenticates the session
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		code := query.Get("code")

		if errorParam := query.Get("error"); errorParam != "" && code == "" {
			log.Warn().
				Str("error", errorParam).
				Str("error_description", query.Get("error_description")).
				Msg("Callback: provider returned an authorization error")
		}

		// A login always gets a fresh id so a known id cannot be fixed on the browser.
		previousID := s.sessionIDFromRequest(r)
		sessionID := newSessionID()

		_, err := s.flow.Complete(r.Context(), sessionID, code)
		switch {
		case apperrors.Is(err, apperrors.ErrMissingCode):
			http.Error(w, "MissingCode", http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, "TokenExchangeFailed", http.StatusInternalServerError)
			return
		}

		if err := s.SetSessionCookie(w, r, sessionID); err != nil {
			log.Err(err).Msg("Callback: failed to encode session cookie")
			http.Error(w, "TokenExchangeFailed", http.StatusInternalServerError)
			return
		}
		if previousID != "" {
			if err := s.flow.Logout(r.Context(), previousID); err != nil {
				log.Err(err).Msg("Callback: failed to delete the previous session")
			}
		}
		http.Redirect(w, r, RouteRoot, http.StatusFound)
	}
}

// LogoutHandler destroys the session and always redirects to the application root
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.flow.Logout(r.Context(), s.sessionIDFromRequest(r)); err != nil {
			log.Err(err).Msg("Logout: failed to delete session")
		}
		s.ClearSessionCookie(w, r)
		http.Redirect(w, r, RouteRoot, http.StatusFound)
	}
}
