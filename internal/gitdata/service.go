package gitdata

import "context"

// ObjectService is the set of git data primitives offered by the hosting service.
// Implementations classify failures with OperationError so that callers can
// distinguish NotFound, Conflict and RemoteFailure.
type ObjectService interface {
	GetBranch(executionContext context.Context, repository RepositoryIdentifier, branchName string) (Branch, error)
	GetCommit(executionContext context.Context, repository RepositoryIdentifier, commit Hash) (Commit, error)
	GetTree(executionContext context.Context, repository RepositoryIdentifier, tree Hash, recursive bool) (Tree, error)
	GetBlob(executionContext context.Context, repository RepositoryIdentifier, blob Hash) (Blob, error)
	CreateBlob(executionContext context.Context, repository RepositoryIdentifier, content string, encoding BlobEncoding) (Hash, error)
	// CreateTree merges the sparse entries over baseTree, replacing entries that share a path.
	CreateTree(executionContext context.Context, repository RepositoryIdentifier, baseTree Hash, entries []TreeEntry) (Hash, error)
	CreateCommit(executionContext context.Context, repository RepositoryIdentifier, request CommitRequest) (Commit, error)
	// CreateRef fails with ErrConflict when the reference already exists.
	CreateRef(executionContext context.Context, repository RepositoryIdentifier, referenceName string, commit Hash) (BranchRef, error)
	// UpdateRef fails with ErrConflict when a non-forced update is not a fast-forward.
	UpdateRef(executionContext context.Context, repository RepositoryIdentifier, referenceName string, commit Hash, force bool) (BranchRef, error)
	GetRef(executionContext context.Context, repository RepositoryIdentifier, referenceName string) (BranchRef, error)
	DeleteRef(executionContext context.Context, repository RepositoryIdentifier, referenceName string) error
}
