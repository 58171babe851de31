package model

import "errors"

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes are part of the external contract and must stay stable.
const (
	CodeAuthenticationFailed    = "AuthenticationFailed"
	CodeInsufficientPermissions = "InsufficientPermissions"
	CodeNotFound                = "NotFound"
	CodeAlreadyExists           = "AlreadyExists"
	CodeInvalidRequest          = "InvalidRequest"
	CodeVerificationRequired    = "VerificationRequired"
	CodeInviteExpired           = "InviteExpired"
	CodeKeyMismatch             = "KeyMismatch"
	CodeMissingAccess           = "MissingAccess"
	CodeDecryptionFailed        = "DecryptionFailed"
	CodeRateLimited             = "RateLimited"
	CodeServerError             = "ServerError"
)

// Error is an error carrying a stable code and a human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError creates an Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError extracts an *Error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Cryptographic failures surface with fixed codes and are never recovered
// locally: silent recovery would mask tampering.
var (
	// ErrAuthenticationFailed is shared by unknown-account and wrong-proof
	// paths so the two are not distinguishable by message shape.
	ErrAuthenticationFailed = NewError(CodeAuthenticationFailed, "authentication failed")

	// ErrInsufficientPermissions mirrors ErrAuthenticationFailed in shape
	// to avoid existence oracles.
	ErrInsufficientPermissions = NewError(CodeInsufficientPermissions, "insufficient permissions")

	ErrMissingAccess    = NewError(CodeMissingAccess, "no accessor entry for this principal")
	ErrKeyMismatch      = NewError(CodeKeyMismatch, "accessor public key does not match stored fingerprint")
	ErrDecryptionFailed = NewError(CodeDecryptionFailed, "payload decryption failed")
	ErrInviteExpired    = NewError(CodeInviteExpired, "invite expired or already used")
	ErrRateLimited      = NewError(CodeRateLimited, "too many attempts")
)
