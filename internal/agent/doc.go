// Package agent wires the chain reader, quote service and report
// generator behind a single facade bound to one wallet address.
// Every failure of an upstream dependency is absorbed into a degraded
// but well-formed result; callers never see a partial response.
package agent
