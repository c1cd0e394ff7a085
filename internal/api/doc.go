// Package api exposes the REST surface for the treasury monitor: swap
// quotes, wallet activity, balances, report generation and the archived
// report history. Handlers translate upstream outages into degraded but
// well-formed responses instead of server errors.
package api
