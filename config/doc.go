// Package config loads toolscope settings.
//
// Settings come from an optional YAML or JSON file and from TOOLSCOPE_*
// environment variables, with the environment taking precedence. Nested keys
// map to upper-case names joined by underscores, so limits.maxConcurrent is
// TOOLSCOPE_LIMITS_MAXCONCURRENT. The inline permission document may also be
// given as TOOL_PERMISSIONS.
package config
