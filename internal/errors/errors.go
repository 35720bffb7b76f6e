package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal session layer
var (
	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")

	// Credential storage errors
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrIncompletePair      = errors.New("credential pair is incomplete")
	ErrCredentialsSealed   = errors.New("credentials are encrypted and no passphrase is configured")

	// Remote API errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTransient        = errors.New("transient remote failure")
	ErrMalformedProfile = errors.New("malformed profile response")

	// Session errors
	ErrNoUser    = errors.New("cannot mark session logged in without a user")
	ErrThrottled = errors.New("session check throttled")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnsupported    = errors.New("unsupported operation")
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
