package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jrsteele09/go-frontdoor-relay/internal/config"
	"github.com/jrsteele09/go-frontdoor-relay/server"
	"github.com/jrsteele09/go-frontdoor-relay/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	if missing := c.MissingOAuthSettings(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("OAuth settings are incomplete, the login flow will fail until they are set")
	}

	store, closeStore, err := newSessionStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	handler, err := server.New(c, store)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// newSessionStore picks the session backend. The returned func releases it.
func newSessionStore(c config.Config) (sessions.Repo, func(), error) {
	switch c.GetSessionStore() {
	case config.StoreMemory:
		log.Info().Int("capacity", c.GetSessionCapacity()).Msg("Using in-memory session store")
		return sessions.NewMemoryStore(c.GetSessionTTL(), c.GetSessionCapacity()), func() {}, nil
	case config.StoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := sessions.NewRedisStore(ctx, sessions.RedisConfig{
			Addr:      c.GetRedisAddr(),
			Password:  c.GetRedisPassword(),
			DB:        c.GetRedisDB(),
			KeyPrefix: c.GetRedisKeyPrefix(),
			TTL:       c.GetSessionTTL(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("sessions.NewRedisStore: %w", err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis session store")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Err(err).Msg("Failed to close redis session store")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q", c.GetSessionStore())
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
