// Package selector picks the best stored variant for delivery. Selection
// is read-only and never fails: whenever stored data is missing or
// unreadable it degrades to the caller-supplied original location.
package selector
