// Package githubauth locates GitHub API tokens in the environment, files, or
// the operating system keyring, or obtains one as a GitHub App installation.
package githubauth
