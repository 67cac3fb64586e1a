// Package orgsync runs the Dependabot reconciliation across every repository of an organization.
//
// Each repository is processed independently: detect ecosystems (through the ecosystem cache),
// resolve override rules, synthesize the document, reconcile it with the committed one, and
// either open a pull request or report what would change. Repositories run on a bounded worker
// pool; the ecosystem cache is the only shared state.
package orgsync
