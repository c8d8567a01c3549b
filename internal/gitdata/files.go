package gitdata

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	blobDecodingErrorTemplateConstant = "unable to decode blob %s: %w"
	truncatedTreeMessageConstant      = "recursive tree listing truncated; resolving path segment by segment"
	truncatedLevelTemplateConstant    = "tree listing for %q truncated before %q"
	fileMissingMessageConstant        = "file not present in branch"
	logFieldPathConstant              = "path"
	base64LineBreakConstant           = "\n"
)

// FileReader resolves file contents at the tip of a branch.
type FileReader struct {
	logger   *zap.Logger
	service  ObjectService
	branches *BranchManager
}

// NewFileReader constructs a FileReader around the provided service.
func NewFileReader(logger *zap.Logger, service ObjectService) (*FileReader, error) {
	branchManager, managerError := NewBranchManager(logger, service)
	if managerError != nil {
		return nil, managerError
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileReader{logger: logger, service: service, branches: branchManager}, nil
}

// ReadFile returns the utf-8 contents of path on branchName. A path absent
// from the branch tree reports found=false rather than an error.
func (reader *FileReader) ReadFile(executionContext context.Context, repository RepositoryIdentifier, branchName string, path string) (string, bool, error) {
	if pathError := ValidatePath(path); pathError != nil {
		return "", false, pathError
	}

	commit, commitError := reader.branches.CurrentCommit(executionContext, repository, branchName)
	if commitError != nil {
		return "", false, commitError
	}

	tree, treeError := reader.service.GetTree(executionContext, repository, commit.Tree, true)
	if treeError != nil {
		return "", false, classifyServiceError(OperationGetTree, treeError)
	}

	entry, entryFound := tree.Lookup(path)
	if !entryFound && tree.Truncated {
		reader.logger.Warn(truncatedTreeMessageConstant, zap.String(logFieldRepositoryConstant, repository.String()), zap.String(logFieldPathConstant, path))
		var walkError error
		entry, entryFound, walkError = reader.walkPath(executionContext, repository, commit.Tree, path)
		if walkError != nil {
			return "", false, walkError
		}
	}
	if !entryFound || entry.Type != ObjectTypeBlob {
		reader.logger.Debug(fileMissingMessageConstant, zap.String(logFieldRepositoryConstant, repository.String()), zap.String(logFieldBranchConstant, branchName), zap.String(logFieldPathConstant, path))
		return "", false, nil
	}

	blob, blobError := reader.service.GetBlob(executionContext, repository, entry.Hash)
	if blobError != nil {
		return "", false, classifyServiceError(OperationGetBlob, blobError)
	}

	content, decodingError := decodeBlobContent(blob)
	if decodingError != nil {
		return "", false, NewOperationError(OperationGetBlob, ErrRemoteFailure, fmt.Errorf(blobDecodingErrorTemplateConstant, entry.Hash, decodingError))
	}

	return content, true, nil
}

// walkPath resolves path one directory level at a time with non-recursive
// listings. A level that is itself truncated and lacks the next segment is a
// remote failure, since absence cannot be proven.
func (reader *FileReader) walkPath(executionContext context.Context, repository RepositoryIdentifier, rootTree Hash, path string) (TreeEntry, bool, error) {
	segments := strings.Split(path, pathSeparatorConstant)
	currentTree := rootTree
	for segmentIndex, segment := range segments {
		level, levelError := reader.service.GetTree(executionContext, repository, currentTree, false)
		if levelError != nil {
			return TreeEntry{}, false, classifyServiceError(OperationGetTree, levelError)
		}
		entry, entryFound := level.Lookup(segment)
		if !entryFound {
			if level.Truncated {
				directory := strings.Join(segments[:segmentIndex], pathSeparatorConstant)
				return TreeEntry{}, false, NewOperationError(OperationGetTree, ErrRemoteFailure, fmt.Errorf(truncatedLevelTemplateConstant, directory, segment))
			}
			return TreeEntry{}, false, nil
		}
		if segmentIndex == len(segments)-1 {
			entry.Path = path
			return entry, true, nil
		}
		if entry.Type != ObjectTypeTree {
			return TreeEntry{}, false, nil
		}
		currentTree = entry.Hash
	}
	return TreeEntry{}, false, nil
}

func decodeBlobContent(blob Blob) (string, error) {
	if blob.Encoding != BlobEncodingBase64 {
		return blob.Content, nil
	}
	decodedContent, decodingError := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, base64LineBreakConstant, ""))
	if decodingError != nil {
		return "", decodingError
	}
	return string(decodedContent), nil
}
