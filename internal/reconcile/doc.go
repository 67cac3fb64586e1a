// Package reconcile decides what to do with a synthesized Dependabot document given the one
// already committed and the run flags.
package reconcile
