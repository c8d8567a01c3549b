package githubapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	branchPathTemplate          = "/branches/%s"
	commitPathTemplate          = "/git/commits/%s"
	commitsPathConstant         = "/git/commits"
	treePathTemplate            = "/git/trees/%s"
	treesPathConstant           = "/git/trees"
	blobPathTemplate            = "/git/blobs/%s"
	blobsPathConstant           = "/git/blobs"
	referencesPathConstant      = "/git/refs"
	referencePathTemplate       = "/git/refs/%s"
	singleReferencePathTemplate = "/git/ref/%s"
	recursiveQueryParameterName = "recursive"
	recursiveQueryValueConstant = "1"
	referencesPrefixConstant    = "refs/"
)

type shaPayload struct {
	SHA string `json:"sha"`
}

type branchPayload struct {
	Name   string     `json:"name"`
	Commit shaPayload `json:"commit"`
}

type signaturePayload struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

type commitPayload struct {
	SHA     string           `json:"sha"`
	Message string           `json:"message"`
	Tree    shaPayload       `json:"tree"`
	Parents []shaPayload     `json:"parents"`
	Author  signaturePayload `json:"author"`
}

type treeEntryPayload struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type treePayload struct {
	SHA       string             `json:"sha"`
	Tree      []treeEntryPayload `json:"tree"`
	Truncated bool               `json:"truncated"`
}

type blobPayload struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type createBlobPayload struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type createTreePayload struct {
	BaseTree string             `json:"base_tree,omitempty"`
	Tree     []treeEntryPayload `json:"tree"`
}

type createCommitPayload struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type createReferencePayload struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type updateReferencePayload struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

type referencePayload struct {
	Ref    string     `json:"ref"`
	Object shaPayload `json:"object"`
}

// GetBranch resolves a branch and the commit it points at.
func (client *Client) GetBranch(executionContext context.Context, repository gitdata.RepositoryIdentifier, branchName string) (gitdata.Branch, error) {
	var payload branchPayload
	request := apiRequest{
		operation: gitdata.OperationGetBranch,
		method:    http.MethodGet,
		path:      repositoryPath(repository, branchPathTemplate, escapePathSegments(branchName)),
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.Branch{}, requestError
	}
	return gitdata.Branch{Name: payload.Name, Commit: gitdata.Hash(payload.Commit.SHA)}, nil
}

// GetCommit fetches a commit object.
func (client *Client) GetCommit(executionContext context.Context, repository gitdata.RepositoryIdentifier, commit gitdata.Hash) (gitdata.Commit, error) {
	var payload commitPayload
	request := apiRequest{
		operation: gitdata.OperationGetCommit,
		method:    http.MethodGet,
		path:      repositoryPath(repository, commitPathTemplate, url.PathEscape(commit.String())),
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.Commit{}, requestError
	}
	return payload.toCommit(), nil
}

// GetTree fetches a tree, optionally listing every nested entry.
func (client *Client) GetTree(executionContext context.Context, repository gitdata.RepositoryIdentifier, tree gitdata.Hash, recursive bool) (gitdata.Tree, error) {
	request := apiRequest{
		operation: gitdata.OperationGetTree,
		method:    http.MethodGet,
		path:      repositoryPath(repository, treePathTemplate, url.PathEscape(tree.String())),
	}
	if recursive {
		request.query = url.Values{recursiveQueryParameterName: []string{recursiveQueryValueConstant}}
	}

	var payload treePayload
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.Tree{}, requestError
	}

	entries := make([]gitdata.TreeEntry, 0, len(payload.Tree))
	for _, entry := range payload.Tree {
		entries = append(entries, gitdata.TreeEntry{
			Path: entry.Path,
			Mode: gitdata.TreeEntryMode(entry.Mode),
			Type: gitdata.ObjectType(entry.Type),
			Hash: gitdata.Hash(entry.SHA),
		})
	}
	return gitdata.Tree{Hash: gitdata.Hash(payload.SHA), Entries: entries, Truncated: payload.Truncated}, nil
}

// GetBlob fetches a blob; GitHub returns the content base64 encoded.
func (client *Client) GetBlob(executionContext context.Context, repository gitdata.RepositoryIdentifier, blob gitdata.Hash) (gitdata.Blob, error) {
	var payload blobPayload
	request := apiRequest{
		operation: gitdata.OperationGetBlob,
		method:    http.MethodGet,
		path:      repositoryPath(repository, blobPathTemplate, url.PathEscape(blob.String())),
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.Blob{}, requestError
	}
	return gitdata.Blob{Hash: gitdata.Hash(payload.SHA), Content: payload.Content, Encoding: gitdata.BlobEncoding(payload.Encoding)}, nil
}

// CreateBlob stores content and returns its hash.
func (client *Client) CreateBlob(executionContext context.Context, repository gitdata.RepositoryIdentifier, content string, encoding gitdata.BlobEncoding) (gitdata.Hash, error) {
	var payload shaPayload
	request := apiRequest{
		operation: gitdata.OperationCreateBlob,
		method:    http.MethodPost,
		path:      repositoryPath(repository, blobsPathConstant),
		body:      createBlobPayload{Content: content, Encoding: string(encoding)},
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return "", requestError
	}
	return gitdata.Hash(payload.SHA), nil
}

// CreateTree sends the sparse entries to be merged over baseTree server side.
func (client *Client) CreateTree(executionContext context.Context, repository gitdata.RepositoryIdentifier, baseTree gitdata.Hash, entries []gitdata.TreeEntry) (gitdata.Hash, error) {
	entryPayloads := make([]treeEntryPayload, 0, len(entries))
	for _, entry := range entries {
		entryPayloads = append(entryPayloads, treeEntryPayload{
			Path: entry.Path,
			Mode: string(entry.Mode),
			Type: string(entry.Type),
			SHA:  entry.Hash.String(),
		})
	}

	var payload shaPayload
	request := apiRequest{
		operation: gitdata.OperationCreateTree,
		method:    http.MethodPost,
		path:      repositoryPath(repository, treesPathConstant),
		body:      createTreePayload{BaseTree: baseTree.String(), Tree: entryPayloads},
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return "", requestError
	}
	return gitdata.Hash(payload.SHA), nil
}

// CreateCommit records a commit object.
func (client *Client) CreateCommit(executionContext context.Context, repository gitdata.RepositoryIdentifier, commitRequest gitdata.CommitRequest) (gitdata.Commit, error) {
	parents := make([]string, 0, len(commitRequest.Parents))
	for _, parent := range commitRequest.Parents {
		parents = append(parents, parent.String())
	}

	var payload commitPayload
	request := apiRequest{
		operation: gitdata.OperationCreateCommit,
		method:    http.MethodPost,
		path:      repositoryPath(repository, commitsPathConstant),
		body:      createCommitPayload{Message: commitRequest.Message, Tree: commitRequest.Tree.String(), Parents: parents},
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.Commit{}, requestError
	}
	return payload.toCommit(), nil
}

// CreateRef creates a reference. GitHub answers 422 when it already exists.
func (client *Client) CreateRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string, commit gitdata.Hash) (gitdata.BranchRef, error) {
	var payload referencePayload
	request := apiRequest{
		operation:               gitdata.OperationCreateRef,
		method:                  http.MethodPost,
		path:                    repositoryPath(repository, referencesPathConstant),
		body:                    createReferencePayload{Ref: referenceName, SHA: commit.String()},
		conflictOnUnprocessable: true,
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.BranchRef{}, requestError
	}
	return payload.toBranchRef(), nil
}

// UpdateRef moves a reference. GitHub answers 422 when a non-forced update is
// not a fast-forward.
func (client *Client) UpdateRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string, commit gitdata.Hash, force bool) (gitdata.BranchRef, error) {
	var payload referencePayload
	request := apiRequest{
		operation:               gitdata.OperationUpdateRef,
		method:                  http.MethodPatch,
		path:                    repositoryPath(repository, referencePathTemplate, referencePathSuffix(referenceName)),
		body:                    updateReferencePayload{SHA: commit.String(), Force: force},
		conflictOnUnprocessable: true,
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.BranchRef{}, requestError
	}
	return payload.toBranchRef(), nil
}

// GetRef resolves a single reference.
func (client *Client) GetRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string) (gitdata.BranchRef, error) {
	var payload referencePayload
	request := apiRequest{
		operation: gitdata.OperationGetRef,
		method:    http.MethodGet,
		path:      repositoryPath(repository, singleReferencePathTemplate, referencePathSuffix(referenceName)),
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return gitdata.BranchRef{}, requestError
	}
	return payload.toBranchRef(), nil
}

// DeleteRef removes a reference. GitHub answers 422 for references that do
// not exist, which is reported as gitdata.ErrNotFound.
func (client *Client) DeleteRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string) error {
	request := apiRequest{
		operation:        gitdata.OperationDeleteRef,
		method:           http.MethodDelete,
		path:             repositoryPath(repository, referencePathTemplate, referencePathSuffix(referenceName)),
		acceptedStatuses: []int{http.StatusUnprocessableEntity},
	}
	_, statusCode, requestError := client.execute(executionContext, request, nil)
	if requestError != nil {
		return requestError
	}
	if statusCode == http.StatusUnprocessableEntity {
		return gitdata.NewOperationError(gitdata.OperationDeleteRef, gitdata.ErrNotFound, ResponseError{
			Method:     request.method,
			Path:       request.path,
			StatusCode: statusCode,
			Message:    referenceName,
		})
	}
	return nil
}

// referencePathSuffix turns refs/heads/x into heads/x for the refs endpoints.
func referencePathSuffix(referenceName string) string {
	return escapePathSegments(strings.TrimPrefix(referenceName, referencesPrefixConstant))
}

func (payload commitPayload) toCommit() gitdata.Commit {
	parents := make([]gitdata.Hash, 0, len(payload.Parents))
	for _, parent := range payload.Parents {
		parents = append(parents, gitdata.Hash(parent.SHA))
	}
	return gitdata.Commit{
		Hash:    gitdata.Hash(payload.SHA),
		Message: payload.Message,
		Tree:    gitdata.Hash(payload.Tree.SHA),
		Parents: parents,
		Author:  gitdata.Signature{Name: payload.Author.Name, Email: payload.Author.Email, When: payload.Author.Date},
	}
}

func (payload referencePayload) toBranchRef() gitdata.BranchRef {
	return gitdata.BranchRef{Name: payload.Ref, Commit: gitdata.Hash(payload.Object.SHA)}
}

// Client satisfies the git data port.
var _ gitdata.ObjectService = (*Client)(nil)
