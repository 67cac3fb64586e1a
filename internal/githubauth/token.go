package githubauth

import (
	"os"
	"strings"
)

// Environment variable names consulted for GitHub credentials.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup reads a single environment variable.
type EnvironmentLookup func(key string) (string, bool)

// ResolveToken returns the first non-empty token from the explicit environment map,
// falling back to the process environment.
func ResolveToken(environment map[string]string) (string, bool) {
	if token, found := resolveFrom(mapLookup(environment)); found {
		return token, true
	}
	return resolveFrom(os.LookupEnv)
}

// CommandEnvironment returns the variables that authenticate gh with the resolved token.
// An empty map is returned when no token is available so gh falls back to its own login state.
func CommandEnvironment(environment map[string]string) map[string]string {
	token, found := ResolveToken(environment)
	if !found {
		return map[string]string{}
	}
	return map[string]string{EnvGitHubCLIToken: token}
}

func resolveFrom(lookup EnvironmentLookup) (string, bool) {
	for _, key := range tokenPreference {
		value, exists := lookup(key)
		if !exists {
			continue
		}
		trimmedValue := strings.TrimSpace(value)
		if len(trimmedValue) > 0 {
			return trimmedValue, true
		}
	}
	return "", false
}

func mapLookup(environment map[string]string) EnvironmentLookup {
	return func(key string) (string, bool) {
		if environment == nil {
			return "", false
		}
		value, exists := environment[key]
		return value, exists
	}
}
