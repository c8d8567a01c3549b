// Package files commits local files to a branch of every selected repository
// as one atomic commit per repository.
package files
