// Package activity normalizes raw signature data from the chain into the
// minimal wallet event records the report generator consumes. Reads are
// best-effort: an unreachable node yields an empty sequence, never an error.
package activity
