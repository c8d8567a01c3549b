package githubauth

import (
	"os"
	"strings"
)

// Environment variable names used by GitHub authentication helpers.
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

// ResolveToken returns the first non-empty GitHub authentication token
// observed through the lookup, which defaults to the process environment.
func ResolveToken(environmentLookup EnvironmentLookup) (string, bool) {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	for _, key := range tokenPreference {
		if value, ok := lookup(environmentLookup, key); ok {
			return value, true
		}
	}
	return "", false
}

func lookup(environmentLookup EnvironmentLookup, key string) (string, bool) {
	value, exists := environmentLookup(key)
	if !exists {
		return "", false
	}
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return "", false
	}
	return value, true
}
