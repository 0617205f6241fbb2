// Package op implements the operation model: the immutable description
// of a requested or completed resource-agent action (§3, §4.1 of the
// design). An Operation is constructed once from an inbound request and
// is never mutated in place after submission; completion fills a copy.
package op
