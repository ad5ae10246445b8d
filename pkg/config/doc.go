// Package config loads and validates the application configuration.
//
// Configuration is layered: built-in defaults, then a YAML file, then
// SNOWGOV_* environment variables. The merged result is validated with
// struct tags before use, so a bad file fails at startup rather than at
// first use.
//
// Long-running deployments can watch the file for changes; a reload that
// fails validation keeps the previous configuration.
package config
