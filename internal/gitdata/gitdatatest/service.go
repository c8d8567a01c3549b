// Package gitdatatest provides an in-memory gitdata.ObjectService for tests.
package gitdatatest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	treeEntryLineTemplateConstant    = "%s %s %s\x00%s\n"
	commitTreeLineTemplateConstant   = "tree %s\n"
	commitParentLineTemplateConstant = "parent %s\n"
	commitAuthorLineTemplateConstant = "author %s <%s> %d +0000\n\n"
	defaultAuthorNameConstant        = "gitfleet"
	defaultAuthorEmailConstant       = "gitfleet@example.com"
	seedMessageConstant              = "initial commit"
	pathSeparatorConstant            = "/"
	unknownRepositoryTemplate        = "repository %s does not exist"
	unknownObjectTemplate            = "%s %s does not exist"
	unknownReferenceTemplate         = "reference %s does not exist"
	referenceExistsTemplate          = "reference %s already exists"
	notFastForwardTemplate           = "update of %s to %s is not a fast-forward"
	invalidBase64Template            = "blob content is not valid base64: %v"
	objectKindBlobConstant           = "blob"
	objectKindTreeConstant           = "tree"
	objectKindCommitConstant         = "commit"
)

// Call records a single primitive invocation.
type Call struct {
	Operation  gitdata.OperationName
	Repository gitdata.RepositoryIdentifier
}

// CallHook runs before a primitive executes and outside the service lock, so
// it may mutate the service (for example to move a branch tip) or return an
// error that the primitive reports instead of running.
type CallHook func(operation gitdata.OperationName, repository gitdata.RepositoryIdentifier) error

type repositoryState struct {
	blobs      map[gitdata.Hash][]byte
	trees      map[gitdata.Hash]map[string]gitdata.TreeEntry
	commits    map[gitdata.Hash]gitdata.Commit
	references map[string]gitdata.Hash
}

func newRepositoryState() *repositoryState {
	return &repositoryState{
		blobs:      make(map[gitdata.Hash][]byte),
		trees:      make(map[gitdata.Hash]map[string]gitdata.TreeEntry),
		commits:    make(map[gitdata.Hash]gitdata.Commit),
		references: make(map[string]gitdata.Hash),
	}
}

// Service is an in-memory object store hashing objects with git's algorithm.
// Tree hashes are computed over the flattened path listing and are stable but
// differ from the hashes git would assign to the nested tree objects.
type Service struct {
	mutex          sync.Mutex
	repositories   map[string]*repositoryState
	calls          []Call
	commitSequence int64
	hook           CallHook
}

// NewService constructs an empty Service.
func NewService() *Service {
	return &Service{repositories: make(map[string]*repositoryState)}
}

// SetHook installs a hook invoked before every primitive. A nil hook removes it.
func (service *Service) SetHook(hook CallHook) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	service.hook = hook
}

// Calls returns the recorded invocations in order.
func (service *Service) Calls() []Call {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	return append([]Call{}, service.calls...)
}

// CallCount reports how many times the operation was invoked.
func (service *Service) CallCount(operation gitdata.OperationName) int {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	count := 0
	for _, call := range service.calls {
		if call.Operation == operation {
			count++
		}
	}
	return count
}

// ResetCalls discards the recorded invocations.
func (service *Service) ResetCalls() {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	service.calls = nil
}

// Seed creates the repository if needed and points branchName at a root
// commit holding the provided files.
func (service *Service) Seed(repository gitdata.RepositoryIdentifier, branchName string, files map[string]string) gitdata.Hash {
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state := service.ensureRepository(repository)
	treeHash, _ := state.mergeTree(gitdata.OperationCreateTree, "", filesToEntries(state, files))
	commit := service.storeCommit(state, gitdata.CommitRequest{Message: seedMessageConstant, Tree: treeHash})
	state.references[gitdata.BranchReferenceName(branchName)] = commit.Hash
	return commit.Hash
}

// AdvanceBranch commits the files on top of the branch tip and moves the
// branch, simulating another actor pushing concurrently.
func (service *Service) AdvanceBranch(repository gitdata.RepositoryIdentifier, branchName string, message string, files map[string]string) (gitdata.Hash, error) {
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationUpdateRef, repository)
	if stateError != nil {
		return "", stateError
	}
	referenceName := gitdata.BranchReferenceName(branchName)
	tip, exists := state.references[referenceName]
	if !exists {
		return "", notFound(gitdata.OperationUpdateRef, fmt.Sprintf(unknownReferenceTemplate, referenceName))
	}
	baseTree := state.commits[tip].Tree
	treeHash, treeError := state.mergeTree(gitdata.OperationCreateTree, baseTree, filesToEntries(state, files))
	if treeError != nil {
		return "", treeError
	}
	commit := service.storeCommit(state, gitdata.CommitRequest{Message: message, Tree: treeHash, Parents: []gitdata.Hash{tip}})
	state.references[referenceName] = commit.Hash
	return commit.Hash, nil
}

// BranchTip returns the commit the branch points at.
func (service *Service) BranchTip(repository gitdata.RepositoryIdentifier, branchName string) (gitdata.Hash, bool) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	state, exists := service.repositories[repository.String()]
	if !exists {
		return "", false
	}
	tip, found := state.references[gitdata.BranchReferenceName(branchName)]
	return tip, found
}

// CommitObject returns a stored commit.
func (service *Service) CommitObject(repository gitdata.RepositoryIdentifier, commit gitdata.Hash) (gitdata.Commit, bool) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	state, exists := service.repositories[repository.String()]
	if !exists {
		return gitdata.Commit{}, false
	}
	stored, found := state.commits[commit]
	if !found {
		return gitdata.Commit{}, false
	}
	return copyCommit(stored), true
}

// Files returns the decoded file contents of the commit's tree keyed by path.
func (service *Service) Files(repository gitdata.RepositoryIdentifier, commit gitdata.Hash) map[string]string {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	state, exists := service.repositories[repository.String()]
	if !exists {
		return nil
	}
	stored, found := state.commits[commit]
	if !found {
		return nil
	}
	files := make(map[string]string)
	for path, entry := range state.trees[stored.Tree] {
		if content, isBlob := state.blobs[entry.Hash]; isBlob {
			files[path] = string(content)
		}
	}
	return files
}

// ObjectCounts reports how many blobs, trees and commits the repository holds.
func (service *Service) ObjectCounts(repository gitdata.RepositoryIdentifier) (blobs int, trees int, commits int) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	state, exists := service.repositories[repository.String()]
	if !exists {
		return 0, 0, 0
	}
	return len(state.blobs), len(state.trees), len(state.commits)
}

// GetBranch implements gitdata.ObjectService.
func (service *Service) GetBranch(executionContext context.Context, repository gitdata.RepositoryIdentifier, branchName string) (gitdata.Branch, error) {
	if beginError := service.begin(executionContext, gitdata.OperationGetBranch, repository); beginError != nil {
		return gitdata.Branch{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationGetBranch, repository)
	if stateError != nil {
		return gitdata.Branch{}, stateError
	}
	referenceName := gitdata.BranchReferenceName(branchName)
	tip, exists := state.references[referenceName]
	if !exists {
		return gitdata.Branch{}, notFound(gitdata.OperationGetBranch, fmt.Sprintf(unknownReferenceTemplate, referenceName))
	}
	return gitdata.Branch{Name: branchName, Commit: tip}, nil
}

// GetCommit implements gitdata.ObjectService.
func (service *Service) GetCommit(executionContext context.Context, repository gitdata.RepositoryIdentifier, commit gitdata.Hash) (gitdata.Commit, error) {
	if beginError := service.begin(executionContext, gitdata.OperationGetCommit, repository); beginError != nil {
		return gitdata.Commit{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationGetCommit, repository)
	if stateError != nil {
		return gitdata.Commit{}, stateError
	}
	stored, exists := state.commits[commit]
	if !exists {
		return gitdata.Commit{}, notFound(gitdata.OperationGetCommit, fmt.Sprintf(unknownObjectTemplate, objectKindCommitConstant, commit))
	}
	return copyCommit(stored), nil
}

// GetTree implements gitdata.ObjectService. Recursive listings include every
// file; non-recursive listings include top-level files and one entry per
// top-level directory.
func (service *Service) GetTree(executionContext context.Context, repository gitdata.RepositoryIdentifier, tree gitdata.Hash, recursive bool) (gitdata.Tree, error) {
	if beginError := service.begin(executionContext, gitdata.OperationGetTree, repository); beginError != nil {
		return gitdata.Tree{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationGetTree, repository)
	if stateError != nil {
		return gitdata.Tree{}, stateError
	}
	files, exists := state.trees[tree]
	if !exists {
		return gitdata.Tree{}, notFound(gitdata.OperationGetTree, fmt.Sprintf(unknownObjectTemplate, objectKindTreeConstant, tree))
	}

	if recursive {
		return gitdata.Tree{Hash: tree, Entries: sortedEntries(files)}, nil
	}

	topLevel := make(map[string]gitdata.TreeEntry)
	subdirectories := make(map[string]map[string]gitdata.TreeEntry)
	for path, entry := range files {
		directory, remainder, nested := strings.Cut(path, pathSeparatorConstant)
		if !nested {
			topLevel[path] = entry
			continue
		}
		if _, known := subdirectories[directory]; !known {
			subdirectories[directory] = make(map[string]gitdata.TreeEntry)
		}
		nestedEntry := entry
		nestedEntry.Path = remainder
		subdirectories[directory][remainder] = nestedEntry
	}
	for directory, nestedFiles := range subdirectories {
		subtreeHash := state.storeTree(nestedFiles)
		topLevel[directory] = gitdata.TreeEntry{Path: directory, Mode: gitdata.TreeEntryModeSubdirectory, Type: gitdata.ObjectTypeTree, Hash: subtreeHash}
	}
	return gitdata.Tree{Hash: tree, Entries: sortedEntries(topLevel)}, nil
}

// GetBlob implements gitdata.ObjectService. Content is returned base64 encoded.
func (service *Service) GetBlob(executionContext context.Context, repository gitdata.RepositoryIdentifier, blob gitdata.Hash) (gitdata.Blob, error) {
	if beginError := service.begin(executionContext, gitdata.OperationGetBlob, repository); beginError != nil {
		return gitdata.Blob{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationGetBlob, repository)
	if stateError != nil {
		return gitdata.Blob{}, stateError
	}
	content, exists := state.blobs[blob]
	if !exists {
		return gitdata.Blob{}, notFound(gitdata.OperationGetBlob, fmt.Sprintf(unknownObjectTemplate, objectKindBlobConstant, blob))
	}
	return gitdata.Blob{Hash: blob, Content: base64.StdEncoding.EncodeToString(content), Encoding: gitdata.BlobEncodingBase64}, nil
}

// CreateBlob implements gitdata.ObjectService.
func (service *Service) CreateBlob(executionContext context.Context, repository gitdata.RepositoryIdentifier, content string, encoding gitdata.BlobEncoding) (gitdata.Hash, error) {
	if beginError := service.begin(executionContext, gitdata.OperationCreateBlob, repository); beginError != nil {
		return "", beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationCreateBlob, repository)
	if stateError != nil {
		return "", stateError
	}
	rawContent := []byte(content)
	if encoding == gitdata.BlobEncodingBase64 {
		decoded, decodingError := base64.StdEncoding.DecodeString(content)
		if decodingError != nil {
			return "", gitdata.NewOperationError(gitdata.OperationCreateBlob, gitdata.ErrRemoteFailure, fmt.Errorf(invalidBase64Template, decodingError))
		}
		rawContent = decoded
	}
	return state.storeBlob(rawContent), nil
}

// CreateTree implements gitdata.ObjectService.
func (service *Service) CreateTree(executionContext context.Context, repository gitdata.RepositoryIdentifier, baseTree gitdata.Hash, entries []gitdata.TreeEntry) (gitdata.Hash, error) {
	if beginError := service.begin(executionContext, gitdata.OperationCreateTree, repository); beginError != nil {
		return "", beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationCreateTree, repository)
	if stateError != nil {
		return "", stateError
	}
	for _, entry := range entries {
		if entry.Type != gitdata.ObjectTypeBlob {
			continue
		}
		if _, exists := state.blobs[entry.Hash]; !exists {
			return "", notFound(gitdata.OperationCreateTree, fmt.Sprintf(unknownObjectTemplate, objectKindBlobConstant, entry.Hash))
		}
	}
	return state.mergeTree(gitdata.OperationCreateTree, baseTree, entries)
}

// CreateCommit implements gitdata.ObjectService.
func (service *Service) CreateCommit(executionContext context.Context, repository gitdata.RepositoryIdentifier, request gitdata.CommitRequest) (gitdata.Commit, error) {
	if beginError := service.begin(executionContext, gitdata.OperationCreateCommit, repository); beginError != nil {
		return gitdata.Commit{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationCreateCommit, repository)
	if stateError != nil {
		return gitdata.Commit{}, stateError
	}
	if _, exists := state.trees[request.Tree]; !exists {
		return gitdata.Commit{}, notFound(gitdata.OperationCreateCommit, fmt.Sprintf(unknownObjectTemplate, objectKindTreeConstant, request.Tree))
	}
	for _, parent := range request.Parents {
		if _, exists := state.commits[parent]; !exists {
			return gitdata.Commit{}, notFound(gitdata.OperationCreateCommit, fmt.Sprintf(unknownObjectTemplate, objectKindCommitConstant, parent))
		}
	}
	return copyCommit(service.storeCommit(state, request)), nil
}

// CreateRef implements gitdata.ObjectService.
func (service *Service) CreateRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string, commit gitdata.Hash) (gitdata.BranchRef, error) {
	if beginError := service.begin(executionContext, gitdata.OperationCreateRef, repository); beginError != nil {
		return gitdata.BranchRef{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationCreateRef, repository)
	if stateError != nil {
		return gitdata.BranchRef{}, stateError
	}
	if _, exists := state.references[referenceName]; exists {
		return gitdata.BranchRef{}, gitdata.NewOperationError(gitdata.OperationCreateRef, gitdata.ErrConflict, fmt.Errorf(referenceExistsTemplate, referenceName))
	}
	if _, exists := state.commits[commit]; !exists {
		return gitdata.BranchRef{}, notFound(gitdata.OperationCreateRef, fmt.Sprintf(unknownObjectTemplate, objectKindCommitConstant, commit))
	}
	state.references[referenceName] = commit
	return gitdata.BranchRef{Name: referenceName, Commit: commit}, nil
}

// UpdateRef implements gitdata.ObjectService. Without force the new commit
// must descend from the current tip.
func (service *Service) UpdateRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string, commit gitdata.Hash, force bool) (gitdata.BranchRef, error) {
	if beginError := service.begin(executionContext, gitdata.OperationUpdateRef, repository); beginError != nil {
		return gitdata.BranchRef{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationUpdateRef, repository)
	if stateError != nil {
		return gitdata.BranchRef{}, stateError
	}
	currentTip, exists := state.references[referenceName]
	if !exists {
		return gitdata.BranchRef{}, notFound(gitdata.OperationUpdateRef, fmt.Sprintf(unknownReferenceTemplate, referenceName))
	}
	if _, known := state.commits[commit]; !known {
		return gitdata.BranchRef{}, notFound(gitdata.OperationUpdateRef, fmt.Sprintf(unknownObjectTemplate, objectKindCommitConstant, commit))
	}
	if !force && !state.descendsFrom(commit, currentTip) {
		return gitdata.BranchRef{}, gitdata.NewOperationError(gitdata.OperationUpdateRef, gitdata.ErrConflict, fmt.Errorf(notFastForwardTemplate, referenceName, commit))
	}
	state.references[referenceName] = commit
	return gitdata.BranchRef{Name: referenceName, Commit: commit}, nil
}

// GetRef implements gitdata.ObjectService.
func (service *Service) GetRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string) (gitdata.BranchRef, error) {
	if beginError := service.begin(executionContext, gitdata.OperationGetRef, repository); beginError != nil {
		return gitdata.BranchRef{}, beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationGetRef, repository)
	if stateError != nil {
		return gitdata.BranchRef{}, stateError
	}
	tip, exists := state.references[referenceName]
	if !exists {
		return gitdata.BranchRef{}, notFound(gitdata.OperationGetRef, fmt.Sprintf(unknownReferenceTemplate, referenceName))
	}
	return gitdata.BranchRef{Name: referenceName, Commit: tip}, nil
}

// DeleteRef implements gitdata.ObjectService.
func (service *Service) DeleteRef(executionContext context.Context, repository gitdata.RepositoryIdentifier, referenceName string) error {
	if beginError := service.begin(executionContext, gitdata.OperationDeleteRef, repository); beginError != nil {
		return beginError
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()

	state, stateError := service.repository(gitdata.OperationDeleteRef, repository)
	if stateError != nil {
		return stateError
	}
	if _, exists := state.references[referenceName]; !exists {
		return notFound(gitdata.OperationDeleteRef, fmt.Sprintf(unknownReferenceTemplate, referenceName))
	}
	delete(state.references, referenceName)
	return nil
}

func (service *Service) begin(executionContext context.Context, operation gitdata.OperationName, repository gitdata.RepositoryIdentifier) error {
	if executionContext != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return gitdata.NewOperationError(operation, gitdata.ErrRemoteFailure, contextError)
		}
	}

	service.mutex.Lock()
	service.calls = append(service.calls, Call{Operation: operation, Repository: repository})
	hook := service.hook
	service.mutex.Unlock()

	if hook == nil {
		return nil
	}
	return hook(operation, repository)
}

func (service *Service) ensureRepository(repository gitdata.RepositoryIdentifier) *repositoryState {
	state, exists := service.repositories[repository.String()]
	if !exists {
		state = newRepositoryState()
		service.repositories[repository.String()] = state
	}
	return state
}

func (service *Service) repository(operation gitdata.OperationName, repository gitdata.RepositoryIdentifier) (*repositoryState, error) {
	state, exists := service.repositories[repository.String()]
	if !exists {
		return nil, notFound(operation, fmt.Sprintf(unknownRepositoryTemplate, repository))
	}
	return state, nil
}

func (service *Service) storeCommit(state *repositoryState, request gitdata.CommitRequest) gitdata.Commit {
	service.commitSequence++

	var payload strings.Builder
	payload.WriteString(fmt.Sprintf(commitTreeLineTemplateConstant, request.Tree))
	for _, parent := range request.Parents {
		payload.WriteString(fmt.Sprintf(commitParentLineTemplateConstant, parent))
	}
	payload.WriteString(fmt.Sprintf(commitAuthorLineTemplateConstant, defaultAuthorNameConstant, defaultAuthorEmailConstant, service.commitSequence))
	payload.WriteString(request.Message)

	commitHash := gitdata.Hash(plumbing.ComputeHash(plumbing.CommitObject, []byte(payload.String())).String())
	commit := gitdata.Commit{
		Hash:    commitHash,
		Message: request.Message,
		Tree:    request.Tree,
		Parents: append([]gitdata.Hash{}, request.Parents...),
		Author:  gitdata.Signature{Name: defaultAuthorNameConstant, Email: defaultAuthorEmailConstant},
	}
	state.commits[commitHash] = commit
	return commit
}

func (state *repositoryState) storeBlob(content []byte) gitdata.Hash {
	blobHash := gitdata.Hash(plumbing.ComputeHash(plumbing.BlobObject, content).String())
	state.blobs[blobHash] = append([]byte{}, content...)
	return blobHash
}

func (state *repositoryState) storeTree(files map[string]gitdata.TreeEntry) gitdata.Hash {
	var payload strings.Builder
	for _, entry := range sortedEntries(files) {
		payload.WriteString(fmt.Sprintf(treeEntryLineTemplateConstant, entry.Mode, entry.Type, entry.Path, entry.Hash))
	}
	treeHash := gitdata.Hash(plumbing.ComputeHash(plumbing.TreeObject, []byte(payload.String())).String())
	if _, exists := state.trees[treeHash]; !exists {
		state.trees[treeHash] = files
	}
	return treeHash
}

func (state *repositoryState) mergeTree(operation gitdata.OperationName, baseTree gitdata.Hash, entries []gitdata.TreeEntry) (gitdata.Hash, error) {
	merged := make(map[string]gitdata.TreeEntry)
	if !baseTree.IsZero() {
		baseFiles, exists := state.trees[baseTree]
		if !exists {
			return "", notFound(operation, fmt.Sprintf(unknownObjectTemplate, objectKindTreeConstant, baseTree))
		}
		for path, entry := range baseFiles {
			merged[path] = entry
		}
	}
	for _, entry := range entries {
		merged[entry.Path] = entry
	}
	return state.storeTree(merged), nil
}

func (state *repositoryState) descendsFrom(commit gitdata.Hash, ancestor gitdata.Hash) bool {
	pending := []gitdata.Hash{commit}
	visited := make(map[gitdata.Hash]struct{})
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if current == ancestor {
			return true
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		pending = append(pending, state.commits[current].Parents...)
	}
	return false
}

func filesToEntries(state *repositoryState, files map[string]string) []gitdata.TreeEntry {
	entries := make([]gitdata.TreeEntry, 0, len(files))
	for path, content := range files {
		entries = append(entries, gitdata.TreeEntry{
			Path: path,
			Mode: gitdata.TreeEntryModeFile,
			Type: gitdata.ObjectTypeBlob,
			Hash: state.storeBlob([]byte(content)),
		})
	}
	return entries
}

func sortedEntries(files map[string]gitdata.TreeEntry) []gitdata.TreeEntry {
	entries := make([]gitdata.TreeEntry, 0, len(files))
	for _, entry := range files {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(left, right int) bool {
		return entries[left].Path < entries[right].Path
	})
	return entries
}

func copyCommit(commit gitdata.Commit) gitdata.Commit {
	copied := commit
	copied.Parents = append([]gitdata.Hash{}, commit.Parents...)
	return copied
}

func notFound(operation gitdata.OperationName, message string) error {
	return gitdata.NewOperationError(operation, gitdata.ErrNotFound, errors.New(message))
}
