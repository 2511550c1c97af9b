// Package listing filters MCP tools/list results down to the tools a caller
// is permitted to see.
//
// Gateway tool names have the form {target}___{tool}. Permission tokens match
// either the local tool name or its category, the part of the local name
// before the first underscore:
//
//	docs-target___list_documents  local name "list_documents", category "list"
package listing
