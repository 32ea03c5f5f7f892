package auth

import (
	"errors"
	"fmt"
)

// Error kinds returned by the Authenticator. Use errors.Is to test for them:
//
//	if errors.Is(err, auth.ErrAuthenticationRejected) {
//		// prompt for new credentials
//	}
var (
	// ErrInvalidCredentialsFormat indicates an empty account identifier, secret or bot token. It
	// is returned before any I/O takes place.
	ErrInvalidCredentialsFormat = errors.New("account identifier and secret must be non-empty")
	// ErrAuthenticationRejected indicates the service refused the credentials.
	ErrAuthenticationRejected = errors.New("authentication rejected")
	// ErrProtocol indicates the service returned a response that could not be parsed.
	ErrProtocol = errors.New("unexpected response from chat service")
	// ErrGatewayUnavailable indicates the gateway endpoint could not be resolved.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrServiceUnavailable indicates the login endpoint could not be reached or failed
	// internally.
	ErrServiceUnavailable = errors.New("login service unavailable")
)

// LoginError is the concrete type of errors returned by the Authenticator.
type LoginError struct {
	Kind error // One of the Err* values of this package.
	Err  error // Underlying cause. May be nil.
}

func newError(kind, err error) *LoginError {
	return &LoginError{Kind: kind, Err: err}
}

func (e *LoginError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

func (e *LoginError) Is(target error) bool {
	return target == e.Kind
}

// Temporary returns true if retrying with the same credentials might succeed. Errors that are
// not temporary require the caller to supply different credentials.
func (e *LoginError) Temporary() bool {
	return e.Kind == ErrGatewayUnavailable || e.Kind == ErrServiceUnavailable
}
