// Package githubapi talks to the GitHub REST API.
//
// Client implements gitdata.ObjectService over the git data endpoints and adds
// the repository, label and pull request calls used by fleet maintenance. All
// failures are reported as gitdata.OperationError values so callers can match
// gitdata.ErrNotFound, gitdata.ErrConflict and gitdata.ErrRemoteFailure with
// errors.Is. The base URL is configurable for GitHub Enterprise.
package githubapi
