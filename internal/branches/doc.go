// Package branches deletes a named branch across a repository fleet.
//
// It offers CommandBuilder for the Cobra command, Service for removing the
// branch reference through the GitHub git data API, and confirmation
// prompters guarding the destructive run.
package branches
