package interceptor

import "errors"

var (
	// ErrBodyTooLarge indicates a request body over the configured limit.
	ErrBodyTooLarge = errors.New("interceptor: request body too large")

	// ErrInvalidEnvelope indicates an envelope that is not a JSON object.
	ErrInvalidEnvelope = errors.New("interceptor: invalid envelope")

	// ErrInvalidJSON indicates a request body that is not valid JSON.
	ErrInvalidJSON = errors.New("interceptor: request body is not valid JSON")

	// ErrAmbiguousMember indicates a JSON-RPC request that repeats a member,
	// or spells a protocol member with different case. JSON decoders do not
	// agree on which copy such a request means.
	ErrAmbiguousMember = errors.New("interceptor: ambiguous JSON-RPC member")

	// ErrUnsupportedEncoding indicates an upstream response body with a
	// content encoding, which cannot be inspected.
	ErrUnsupportedEncoding = errors.New("interceptor: unsupported content encoding")
)
