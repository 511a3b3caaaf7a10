// Package config loads branchpoints configuration.
//
// Settings are layered, later layers winning:
//
//  1. built-in defaults
//  2. .branchpoints.toml in the workspace, or an explicit --config file
//  3. BRANCHPOINTS_* environment variables (dots become underscores,
//     e.g. BRANCHPOINTS_LOGGING_LEVEL)
//  4. command-line overrides
//
// Relative paths are resolved against the workspace directory.
package config
