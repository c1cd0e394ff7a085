// Package solana defines the read-only chain access interface used by the
// treasury agent, plus the YAML cluster definitions that map human readable
// cluster names to RPC endpoints. Concrete transports live in subpackages.
package solana
