package spaceapi

import (
	"errors"
)

// Sentinels for errors.Is checks. Every CommunicationError and
// AuthenticationError also matches ErrClient.
var (
	ErrClient         = errors.New("spaceapi client error")
	ErrCommunication  = errors.New("spaceapi communication error")
	ErrAuthentication = errors.New("spaceapi authentication error")
	ErrConfig         = errors.New("spaceapi config error")
)

// ClientError indicates a general API error
type ClientError struct {
	Msg string
	Err error
}

func (e *ClientError) Error() string {
	return e.Msg
}

func (e *ClientError) Unwrap() []error {
	return withCause(e.Err, ErrClient)
}

// CommunicationError indicates a network, timeout or non-auth HTTP failure
type CommunicationError struct {
	Msg string
	Err error

	// Fallback holds the error of the bare-host retry, if one was attempted.
	// It is diagnostic only and is not part of the Unwrap chain.
	Fallback error
}

func (e *CommunicationError) Error() string {
	return e.Msg
}

func (e *CommunicationError) Unwrap() []error {
	return withCause(e.Err, ErrCommunication, ErrClient)
}

// AuthenticationError indicates bad or missing credentials
type AuthenticationError struct {
	Msg string
	Err error
}

func (e *AuthenticationError) Error() string {
	return e.Msg
}

func (e *AuthenticationError) Unwrap() []error {
	return withCause(e.Err, ErrAuthentication, ErrClient)
}

// ConfigError indicates an invalid host URL or API key
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

func withCause(cause error, sentinels ...error) []error {
	if cause == nil {
		return sentinels
	}
	return append(sentinels, cause)
}
