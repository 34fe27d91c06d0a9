package eocustom

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates the strategy configuration is invalid.
	ErrInvalidConfiguration = errors.New("eocustom: invalid configuration")

	// ErrInvalidCredentials is the single user-facing failure category of a
	// handshake. Every remote failure that aborts a handshake wraps it.
	ErrInvalidCredentials = errors.New("eocustom: invalid credentials")

	// ErrMissingParameter indicates a required callback query parameter is absent.
	ErrMissingParameter = fmt.Errorf("%w: missing callback parameter", ErrInvalidCredentials)

	// ErrSignatureMismatch indicates the callback signature did not match.
	ErrSignatureMismatch = fmt.Errorf("%w: signature mismatch", ErrInvalidCredentials)

	// ErrTokenExchangeFailed indicates the v2 token exchange failed.
	ErrTokenExchangeFailed = fmt.Errorf("%w: token exchange failed", ErrInvalidCredentials)

	// ErrMemberDetailFailed indicates the v2 member detail lookup failed.
	ErrMemberDetailFailed = fmt.Errorf("%w: member detail lookup failed", ErrInvalidCredentials)

	// ErrPasswordGrantFailed indicates the v3 password grant failed.
	ErrPasswordGrantFailed = fmt.Errorf("%w: password grant failed", ErrInvalidCredentials)

	// ErrCustomFieldsFailed indicates the v3 custom field lookup failed. It
	// never aborts a handshake and so does not wrap ErrInvalidCredentials.
	ErrCustomFieldsFailed = errors.New("eocustom: custom fields lookup failed")
)

// Reason is the failure code reported to the host application.
type Reason string

// ReasonInvalidCredentials is reported for every failed handshake.
const ReasonInvalidCredentials Reason = "invalid_credentials"

// HandshakeError describes a handshake that ended in the failed state.
type HandshakeError struct {
	// State is the last state the handshake reached before failing.
	State State

	// Reason is the failure code for the host application.
	Reason Reason

	// Err is the underlying cause.
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("eocustom: handshake failed after %s (%s): %v", e.State, e.Reason, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the failure reason carried by err, or the invalid
// credentials reason when err is not a HandshakeError.
func ReasonOf(err error) Reason {
	var hsErr *HandshakeError
	if errors.As(err, &hsErr) {
		return hsErr.Reason
	}
	return ReasonInvalidCredentials
}
