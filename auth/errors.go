package auth

import "errors"

// Sentinel errors for credential decoding and authorization.
var (
	// Decoding errors
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrPayloadEncoding    = errors.New("auth: payload is not valid base64url")
	ErrPayloadFormat      = errors.New("auth: payload is not a JSON object")

	// Authorization errors
	ErrForbidden = errors.New("auth: access denied")
)
