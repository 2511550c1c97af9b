package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names read from the token payload.
const (
	ClaimSubject       = "sub"
	ClaimUsername      = "cognito:username"
	ClaimEmail         = "email"
	ClaimCognitoGroups = "cognito:groups"
	ClaimCustomGroups  = "custom:groups"
	ClaimExpiresAt     = "exp"
	ClaimIssuedAt      = "iat"
)

const bearerPrefix = "Bearer "

// segmentDecoder decodes base64url segments, padding them to a multiple of
// four first.
var segmentDecoder = jwt.NewParser(jwt.WithPaddingAllowed())

// Claims is the typed subset of a token payload this service reads.
//
// Group claims carry explicit presence flags: a claim that is missing and a
// claim of the wrong type both leave the flag false.
type Claims struct {
	Subject  string
	Username string
	Email    string

	// CognitoGroups holds the string elements of cognito:groups.
	CognitoGroups    []string
	HasCognitoGroups bool

	// CustomGroups is the raw comma-separated custom:groups value.
	CustomGroups    string
	HasCustomGroups bool

	ExpiresAt time.Time
	IssuedAt  time.Time

	// Raw is the full decoded payload.
	Raw map[string]any
}

// Groups returns the caller's groups: cognito:groups when present and
// non-empty, otherwise custom:groups split on ",". The result may be empty.
// Order and duplicates are kept.
func (c *Claims) Groups() []string {
	if c == nil {
		return nil
	}
	if c.HasCognitoGroups && len(c.CognitoGroups) > 0 {
		return append([]string(nil), c.CognitoGroups...)
	}
	if c.HasCustomGroups && c.CustomGroups != "" {
		return strings.Split(c.CustomGroups, ",")
	}
	return nil
}

// Principal returns the first non-empty of sub, cognito:username and email.
func (c *Claims) Principal() string {
	if c == nil {
		return ""
	}
	for _, v := range []string{c.Subject, c.Username, c.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

// DecodeClaims decodes the payload of a JWT without verifying it.
// A leading "Bearer " is stripped. The returned error wraps one of
// ErrMissingCredentials, ErrTokenMalformed, ErrPayloadEncoding or
// ErrPayloadFormat.
func DecodeClaims(token string) (*Claims, error) {
	token = strings.TrimPrefix(token, bearerPrefix)
	if token == "" {
		return nil, ErrMissingCredentials
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrTokenMalformed, len(parts))
	}

	payload, err := segmentDecoder.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadEncoding, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, ErrPayloadFormat
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ErrPayloadFormat
	}

	c := &Claims{Raw: raw}
	c.Subject = stringClaim(fields, ClaimSubject)
	c.Username = stringClaim(fields, ClaimUsername)
	c.Email = stringClaim(fields, ClaimEmail)
	c.CognitoGroups, c.HasCognitoGroups = cognitoGroups(fields[ClaimCognitoGroups])
	c.CustomGroups, c.HasCustomGroups = stringClaimOK(fields, ClaimCustomGroups)
	c.ExpiresAt = timeClaim(fields, ClaimExpiresAt)
	c.IssuedAt = timeClaim(fields, ClaimIssuedAt)
	return c, nil
}

func stringClaimOK(fields map[string]json.RawMessage, name string) (string, bool) {
	v, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func stringClaim(fields map[string]json.RawMessage, name string) string {
	s, _ := stringClaimOK(fields, name)
	return s
}

// cognitoGroups reads cognito:groups. Arrays keep their string elements.
// Some issuers flatten the claim to a comma-separated string; that form is
// split like custom:groups.
func cognitoGroups(v json.RawMessage) ([]string, bool) {
	if v == nil {
		return nil, false
	}
	var list []any
	if err := json.Unmarshal(v, &list); err == nil {
		if list == nil {
			return nil, false
		}
		groups := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				groups = append(groups, s)
			}
		}
		return groups, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if s == "" {
			return []string{}, true
		}
		return strings.Split(s, ","), true
	}
	return nil, false
}

func timeClaim(fields map[string]json.RawMessage, name string) time.Time {
	v, ok := fields[name]
	if !ok {
		return time.Time{}
	}
	var nd jwt.NumericDate
	if err := json.Unmarshal(v, &nd); err != nil {
		return time.Time{}
	}
	return nd.Time
}
