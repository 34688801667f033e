// Package config provides the run configuration for page-loader: request
// timeouts, download concurrency, rate limiting, per-host headers and
// cookies, and extra content type to extension mappings.
package config
