// Package auth resolves the caller behind an MCP request.
//
// Credentials arrive as bearer JWTs that an upstream gateway has already
// verified. This package only decodes the payload segment and reads the
// group claims from it: signatures are never checked. Resolution never fails.
// Anything unreadable degrades to the guest identity.
package auth
