package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the front-door relay
var (
	// Flow errors
	ErrMissingCode         = errors.New("missing authorization code")
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// Front door errors
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSingleAccessFailed = errors.New("single access exchange failed")

	// Provider errors
	ErrMalformedProviderResponse = errors.New("malformed provider response")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
