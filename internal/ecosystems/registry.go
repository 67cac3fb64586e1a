package ecosystems

import (
	"strings"
)

// Name is a Dependabot package-ecosystem value.
type Name string

// Known ecosystems in registry order.
const (
	GitHubActions Name = Name("github-actions")
	NPM           Name = Name("npm")
	Cargo         Name = Name("cargo")
	GoModules     Name = Name("gomod")
	Pip           Name = Name("pip")
	UV            Name = Name("uv")
	Bundler       Name = Name("bundler")
	Docker        Name = Name("docker")
	Terraform     Name = Name("terraform")
	GitSubmodule  Name = Name("gitsubmodule")
)

// Definition describes a registered ecosystem.
type Definition struct {
	Name             Name
	SupportsCooldown bool
	RootOnly         bool
	SemverVersions   bool
}

var registry = []Definition{
	{Name: GitHubActions, SupportsCooldown: true, RootOnly: true},
	{Name: NPM, SupportsCooldown: true, SemverVersions: true},
	{Name: Cargo, SupportsCooldown: true, SemverVersions: true},
	{Name: GoModules, SupportsCooldown: true, SemverVersions: true},
	{Name: Pip, SupportsCooldown: true},
	{Name: UV, SupportsCooldown: true},
	{Name: Bundler, SupportsCooldown: true, SemverVersions: true},
	{Name: Docker, SupportsCooldown: true},
	{Name: Terraform, SupportsCooldown: true},
	{Name: GitSubmodule, SupportsCooldown: false, RootOnly: true},
}

var aliases = map[string]Name{
	"actions":        GitHubActions,
	"github_actions": GitHubActions,
	"node":           NPM,
	"yarn":           NPM,
	"rust":           Cargo,
	"go":             GoModules,
	"golang":         GoModules,
	"go_modules":     GoModules,
	"python":         Pip,
	"ruby":           Bundler,
	"git-submodule":  GitSubmodule,
	"submodule":      GitSubmodule,
}

// Definitions returns the registry in display order.
func Definitions() []Definition {
	return append([]Definition(nil), registry...)
}

// Lookup returns the definition of a known ecosystem.
func Lookup(name Name) (Definition, bool) {
	for _, definition := range registry {
		if definition.Name == name {
			return definition, true
		}
	}
	return Definition{}, false
}

// Canonicalize normalizes user-supplied ecosystem spellings. Unknown names are lower-cased and kept.
func Canonicalize(raw string) Name {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if alias, isAlias := aliases[normalized]; isAlias {
		return alias
	}
	return Name(normalized)
}

// SortKey orders ecosystems by registry position; unknown ecosystems sort after every known one.
func SortKey(name Name) int {
	for index, definition := range registry {
		if definition.Name == name {
			return index
		}
	}
	return len(registry)
}

// Compare orders two ecosystems by sort key, then by name.
func Compare(left Name, right Name) int {
	leftKey, rightKey := SortKey(left), SortKey(right)
	switch {
	case leftKey < rightKey:
		return -1
	case leftKey > rightKey:
		return 1
	default:
		return strings.Compare(string(left), string(right))
	}
}

// SupportsCooldown reports whether Dependabot accepts a cooldown block for the ecosystem.
// Unknown ecosystems are assumed to support it.
func SupportsCooldown(name Name) bool {
	definition, known := Lookup(name)
	if !known {
		return true
	}
	return definition.SupportsCooldown
}

// UsesSemverVersions reports whether the ecosystem's ignore versions are semver range expressions.
func UsesSemverVersions(name Name) bool {
	definition, known := Lookup(name)
	return known && definition.SemverVersions
}
