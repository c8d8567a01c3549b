package gitdata

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	messageFieldNameConstant      = "message"
	treeFieldNameConstant         = "tree"
	parentFieldNameTemplate       = "parents[%d]"
	commitCreatedMessageConstant  = "created commit"
	logFieldCommitConstant        = "commit"
	logFieldParentsConstant       = "parents"
	unexpectedTreeMessageTemplate = "service recorded tree %s instead of %s"
)

// CommitBuilder creates commit objects.
type CommitBuilder struct {
	logger  *zap.Logger
	service ObjectService
}

// NewCommitBuilder constructs a CommitBuilder around the provided service.
func NewCommitBuilder(logger *zap.Logger, service ObjectService) (*CommitBuilder, error) {
	if service == nil {
		return nil, ErrServiceNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitBuilder{logger: logger, service: service}, nil
}

// CreateCommit records a commit of tree with the parents in the given order.
// An empty parent list is only meaningful for a repository's root commit.
func (builder *CommitBuilder) CreateCommit(executionContext context.Context, repository RepositoryIdentifier, message string, tree Hash, parents []Hash) (Commit, error) {
	if validationError := repository.Validate(); validationError != nil {
		return Commit{}, validationError
	}
	if len(strings.TrimSpace(message)) == 0 {
		return Commit{}, InvalidInputError{FieldName: messageFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if treeError := tree.Validate(treeFieldNameConstant); treeError != nil {
		return Commit{}, treeError
	}
	for parentIndex, parent := range parents {
		if parentError := parent.Validate(fmt.Sprintf(parentFieldNameTemplate, parentIndex)); parentError != nil {
			return Commit{}, parentError
		}
	}

	request := CommitRequest{Message: message, Tree: tree, Parents: append([]Hash{}, parents...)}
	commit, creationError := builder.service.CreateCommit(executionContext, repository, request)
	if creationError != nil {
		return Commit{}, classifyServiceError(OperationCreateCommit, creationError)
	}
	if commit.Hash.IsZero() {
		return Commit{}, NewOperationError(OperationCreateCommit, ErrRemoteFailure, errEmptyHashResponse)
	}
	if !commit.Tree.IsZero() && commit.Tree != tree {
		return Commit{}, NewOperationError(OperationCreateCommit, ErrRemoteFailure, fmt.Errorf(unexpectedTreeMessageTemplate, commit.Tree, tree))
	}
	commit.Tree = tree
	if len(commit.Parents) == 0 {
		commit.Parents = request.Parents
	}

	builder.logger.Debug(
		commitCreatedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.String(logFieldCommitConstant, commit.Hash.String()),
		zap.String(logFieldTreeConstant, tree.String()),
		zap.Int(logFieldParentsConstant, len(parents)),
	)

	return commit, nil
}
