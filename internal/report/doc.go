// Package report turns normalized wallet activity into a human-readable
// Ukrainian treasury summary. It owns the prompt construction and the
// tiered degradation policy across "no data", "no credentials" and
// "provider failure" conditions; a caller always gets usable text back.
package report
