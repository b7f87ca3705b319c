package server

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/jrsteele09/go-frontdoor-relay/frontdoor"
	"github.com/jrsteele09/go-frontdoor-relay/internal/config"
	"github.com/jrsteele09/go-frontdoor-relay/oauthflow"
	"github.com/jrsteele09/go-frontdoor-relay/provider"
	"github.com/jrsteele09/go-frontdoor-relay/sessions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	fileServer http.Handler
	config     config.Config
	sessions   sessions.Repo
	flow       *oauthflow.Controller
	frontDoor  *frontdoor.Broker
	cookies    *securecookie.SecureCookie
}

type Option func(*Server)

// WithProviderClient replaces the provider client built from the configuration.
func WithProviderClient(client *provider.Client) Option {
	return func(s *Server) {
		s.flow = newFlowController(s.config, client, s.sessions)
		s.frontDoor = frontdoor.New(client)
	}
}

func New(cfg config.Config, store sessions.Repo, options ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("[Server New] session store is required")
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		sessions:   store,
		fileServer: FileServerHandler(cfg.GetStaticDir()),
		cookies:    newCookieCodec(cfg),
	}

	client := provider.New(provider.Config{
		LoginURL:     cfg.GetLoginURL(),
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURI:  cfg.GetRedirectURI(),
		Timeout:      cfg.GetProviderTimeout(),
	})
	s.flow = newFlowController(cfg, client, store)
	s.frontDoor = frontdoor.New(client)

	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func newFlowController(cfg config.Config, client *provider.Client, store sessions.Repo) *oauthflow.Controller {
	return oauthflow.New(oauthflow.Settings{
		LoginURL:    cfg.GetLoginURL(),
		ClientID:    cfg.GetClientID(),
		RedirectURI: cfg.GetRedirectURI(),
		Scopes:      cfg.GetScopes(),
	}, client, store)
}

// newCookieCodec signs session cookies with a key derived from the session
// secret. Without a secret the key is random, so cookies do not survive a restart.
func newCookieCodec(cfg config.Config) *securecookie.SecureCookie {
	var hashKey []byte
	if secret := cfg.GetSessionSecret(); secret != "" {
		sum := sha256.Sum256([]byte(secret))
		hashKey = sum[:]
	} else {
		log.Warn().Msg("SESSION_SECRET is not set, using a random per-process signing key")
		hashKey = securecookie.GenerateRandomKey(32)
	}

	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(cfg.GetSessionTTL().Seconds()))
	return codec
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
