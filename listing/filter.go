package listing

import (
	"github.com/jonwraymond/toolscope/policy"
)

// Permitted reports whether perms allow the tool with the given qualified
// name: its local name or its category must be a token in perms.
func Permitted(qualified string, perms policy.Permissions) bool {
	if perms.IsAllAccess() {
		return true
	}
	n := ParseName(qualified)
	return perms.Contains(n.Local) || perms.Contains(n.Category)
}

// Filter returns response with result.tools reduced to the entries perms
// allow. Surviving entries keep their relative order and are not copied.
//
// The caller's map is never modified: the top-level map and result are
// shallow-copied and only tools is replaced. All-access returns response
// itself. A response without an object result is returned unchanged. A
// result whose tools is missing or not an array gets an empty tools array.
// Entries that are not objects, or whose name is not a string, are dropped.
func Filter(response map[string]any, perms policy.Permissions) map[string]any {
	if perms.IsAllAccess() || response == nil {
		return response
	}
	result, ok := response["result"].(map[string]any)
	if !ok {
		return response
	}

	tools, _ := result["tools"].([]any)
	kept := make([]any, 0, len(tools))
	for _, entry := range tools {
		tool, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := tool["name"].(string)
		if Permitted(name, perms) {
			kept = append(kept, entry)
		}
	}

	newResult := make(map[string]any, len(result))
	for k, v := range result {
		newResult[k] = v
	}
	newResult["tools"] = kept

	out := make(map[string]any, len(response))
	for k, v := range response {
		out[k] = v
	}
	out["result"] = newResult
	return out
}

// Count returns the number of entries in response's result.tools.
func Count(response map[string]any) int {
	result, ok := response["result"].(map[string]any)
	if !ok {
		return 0
	}
	tools, _ := result["tools"].([]any)
	return len(tools)
}
