// Package ecosystems detects Dependabot package ecosystems from a repository tree snapshot.
//
// The registry fixes the set of known ecosystems and their display order; the
// Detector matches manifest files against it without performing network I/O.
package ecosystems
