// Package policy maps caller groups to the permission tokens that decide
// which tools they may see.
//
// A Table is built once from configuration and never changes afterwards.
// Resolve unions the entries of every group the caller belongs to. A "*"
// token grants access to everything and wins over all other entries.
package policy
