// Package overrides loads Dependabot override rules and folds them with detected ecosystems
// into resolved update directives.
//
// Rules come from a TOML or YAML document with four scopes: global fields at the top
// level, organizations, repositories, and ecosystems within a repository. The more specific
// scope wins field by field.
package overrides
