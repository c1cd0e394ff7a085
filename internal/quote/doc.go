// Package quote wraps the external swap-quote provider behind a bounded
// wait and a deterministic local fallback. Its single design contract:
// after input validation passes, exactly one of a real quote or a fallback
// quote is always produced, and the caller never sees a transport error.
package quote
