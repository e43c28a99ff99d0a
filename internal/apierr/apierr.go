// Package apierr holds the error kinds returned by the credential and completion paths.
// Callers match them with errors.As instead of inspecting error strings.
package apierr

import (
	"errors"
	"fmt"
)

// ConfigError reports a missing or invalid setting. It is never retried internally.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError with a formatted message.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// WrapConfig marks err as fatal to the current resolution attempt.
func WrapConfig(msg string, err error) *ConfigError {
	return &ConfigError{Msg: msg, Err: err}
}

// ErrNoIAMToken means the exchange endpoint answered 200 without a token.
var ErrNoIAMToken = errors.New("response has no iamToken")

// AuthError is a failed answer from the token exchange endpoint.
// Body is the raw response text, kept as an opaque diagnostic. Err is set
// when the status was fine but the body was not.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to get iam token: %v: %s", e.Err, e.Body)
	}
	return fmt.Sprintf("failed to get iam token (status %d): %s", e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CompletionError is a non-200 answer from the completion endpoint.
type CompletionError struct {
	StatusCode int
	Body       string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("failed to send completion request (status %d): %s", e.StatusCode, e.Body)
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsCompletion(err error) bool {
	var ce *CompletionError
	return errors.As(err, &ce)
}
