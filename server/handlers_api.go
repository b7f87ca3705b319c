package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
	"github.com/jrsteele09/go-frontdoor-relay/sessions"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	errCodeNotAuthenticated   = "not_authenticated"
	errCodeSingleAccessFailed = "singleaccess_failed"
	errCodeSessionUnavailable = "session_unavailable"

	fallbackNote = "fallback: front door URL built from the session access token"
)

// APIError is the body of every failed API response
type APIError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// FrontDoorResponse is the body of a successful /api/frontdoor call
type FrontDoorResponse struct {
	FrontdoorURL string `json:"frontdoorUrl"`
	Note         string `json:"note,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to encode JSON response")
	}
}

// currentSession loads the record bound to the request. A missing record is
// returned as nil without an error.
func (s *Server) currentSession(r *http.Request) (*sessions.Record, error) {
	sessionID := s.sessionIDFromRequest(r)
	if sessionID == "" {
		return nil, nil
	}

	record, err := s.sessions.Get(r.Context(), sessionID)
	if apperrors.Is(err, apperrors.ErrSessionNotFound) || apperrors.Is(err, apperrors.ErrInvalidSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// MeHandler reports whether the browser session is authenticated
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.currentSession(r)
		if err != nil {
			log.Err(err).Msg("Me: failed to load session")
		}
		writeJSON(w, http.StatusOK, sessions.StatusOf(record))
	}
}

// FrontDoorHandler returns a one-time URL that opens the provider signed in
func (s *Server) FrontDoorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.currentSession(r)
		if err != nil {
			log.Err(err).Msg("Front door: failed to load session")
			writeJSON(w, http.StatusInternalServerError, APIError{Error: errCodeSessionUnavailable})
			return
		}

		result, err := s.frontDoor.Derive(r.Context(), record)
		switch {
		case apperrors.Is(err, apperrors.ErrNotAuthenticated):
			writeJSON(w, http.StatusUnauthorized, APIError{Error: errCodeNotAuthenticated})
			return
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, APIError{
				Error:  errCodeSingleAccessFailed,
				Detail: "the single access exchange with the provider did not complete",
			})
			return
		}

		resp := FrontDoorResponse{FrontdoorURL: result.URL}
		if result.Fallback {
			resp.Note = fallbackNote
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// PreflightHandler answers CORS preflight requests for the API routes
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthHandler reports liveness
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
