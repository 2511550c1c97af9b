package policy

import "errors"

var (
	// ErrInvalidDocument indicates a permission document that is not a
	// mapping of group names to token lists.
	ErrInvalidDocument = errors.New("policy: invalid permission document")
)
