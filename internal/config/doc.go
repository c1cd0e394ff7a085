// Package config loads the single JSON configuration file consumed at
// process start. Every component receives its parameters through this
// package; nothing else in the codebase reads environment variables at
// call sites.
package config
