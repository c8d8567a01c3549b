// Package gitdata composes commits from the git data primitives exposed by a
// hosting service without checking out a working tree.
//
// ObjectService describes the remote primitives (blobs, trees, commits and
// references). BlobStore, TreeComposer, CommitBuilder and BranchManager wrap
// those primitives with validation and error classification, while
// PendingFileSet accumulates staged blobs for a single commit workflow.
// Failures are reported as OperationError values whose kind matches
// ErrNotFound, ErrConflict or ErrRemoteFailure through errors.Is.
package gitdata
