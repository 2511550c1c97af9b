package auth

import "time"

// GuestGroup is the group assigned to callers without readable group claims.
const GuestGroup = "guest"

// AuthMethod indicates how the caller was identified.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity represents the resolved caller.
type Identity struct {
	// Principal is the unique identifier (sub, cognito:username or email).
	Principal string

	// Groups are the caller's groups. Never empty for a resolved identity.
	Groups []string

	// Method indicates how the identity was obtained.
	Method AuthMethod

	// Claims contains the raw claims from the token.
	Claims map[string]any

	// ExpiresAt is the token's exp claim, if any.
	ExpiresAt time.Time

	// IssuedAt is the token's iat claim, if any.
	IssuedAt time.Time

	// DecodeErr is set when a credential was present but could not be decoded.
	DecodeErr error
}

// IsGuest reports whether the identity fell back to the guest group.
func (id *Identity) IsGuest() bool {
	return id == nil || (len(id.Groups) == 1 && id.Groups[0] == GuestGroup)
}

// IsExpired checks if the token behind the identity has expired.
// Expiry is informational: the gateway enforces it.
func (id *Identity) IsExpired() bool {
	if id == nil || id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}

// IsAnonymous returns true if no credential contributed to this identity.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == AuthMethodAnonymous || id.Principal == ""
}

// GuestIdentity creates the default identity for callers without credentials.
func GuestIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Groups:    []string{GuestGroup},
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}
