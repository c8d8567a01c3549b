package branches

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	defaultBranchProtectedTemplateConstant = "refusing to delete default branch %s"
	branchAbsentMessageConstant            = "branch not found"
	deleteErrorTemplateConstant            = "unable to delete branch %s: %w"
	lookupErrorTemplateConstant            = "unable to look up branch %s: %w"
	deletedDetailTemplateConstant          = "deleted %s"
	dryRunDetailTemplateConstant           = "would delete %s at %s"
	branchAbsentLogMessageConstant         = "branch not present; nothing to delete"
	logFieldRepositoryConstant             = "repository"
	logFieldBranchConstant                 = "branch"
	shortCommitLengthConstant              = 7
)

var (
	// ErrBranchAbsent indicates the branch does not exist in the repository.
	ErrBranchAbsent = errors.New(branchAbsentMessageConstant)
)

// DefaultBranchProtectedError reports an attempt to delete a repository's default branch.
type DefaultBranchProtectedError struct {
	Branch string
}

// Error describes the refusal.
func (protectedError DefaultBranchProtectedError) Error() string {
	return fmt.Sprintf(defaultBranchProtectedTemplateConstant, protectedError.Branch)
}

// DeleteOptions configures a branch deletion.
type DeleteOptions struct {
	BranchName string
	DryRun     bool
}

// Service removes branches from individual repositories.
type Service struct {
	logger   *zap.Logger
	branches *gitdata.BranchManager
}

// NewService constructs a Service over the git data service.
func NewService(logger *zap.Logger, service gitdata.ObjectService) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	branchManager, managerError := gitdata.NewBranchManager(logger, service)
	if managerError != nil {
		return nil, managerError
	}
	return &Service{logger: logger, branches: branchManager}, nil
}

// Delete removes the branch unless it is the repository's default branch.
// A missing branch yields ErrBranchAbsent. Dry runs only confirm the branch exists.
func (service *Service) Delete(executionContext context.Context, repository githubapi.Repository, options DeleteOptions) (string, error) {
	branchName := strings.TrimSpace(options.BranchName)
	if validationError := gitdata.ValidateBranchName(branchName); validationError != nil {
		return "", validationError
	}
	if strings.EqualFold(branchName, repository.DefaultBranch) {
		return "", DefaultBranchProtectedError{Branch: branchName}
	}

	repositoryField := zap.String(logFieldRepositoryConstant, repository.Identifier.String())
	branchField := zap.String(logFieldBranchConstant, branchName)

	if options.DryRun {
		tip, lookupError := service.branches.CurrentCommit(executionContext, repository.Identifier, branchName)
		switch {
		case gitdata.IsNotFound(lookupError):
			return "", ErrBranchAbsent
		case lookupError != nil:
			return "", fmt.Errorf(lookupErrorTemplateConstant, branchName, lookupError)
		}
		return fmt.Sprintf(dryRunDetailTemplateConstant, branchName, shortCommit(tip.Hash)), nil
	}

	deleteError := service.branches.DeleteBranch(executionContext, repository.Identifier, branchName)
	switch {
	case gitdata.IsNotFound(deleteError):
		service.logger.Info(branchAbsentLogMessageConstant, repositoryField, branchField)
		return "", ErrBranchAbsent
	case deleteError != nil:
		return "", fmt.Errorf(deleteErrorTemplateConstant, branchName, deleteError)
	}

	return fmt.Sprintf(deletedDetailTemplateConstant, branchName), nil
}

// Task adapts Delete to the fleet runner. Missing branches are reported as skipped.
func (service *Service) Task(options DeleteOptions) fleet.Task {
	return func(executionContext context.Context, repository githubapi.Repository) (string, error) {
		detail, deleteError := service.Delete(executionContext, repository, options)
		if errors.Is(deleteError, ErrBranchAbsent) {
			return branchAbsentMessageConstant, fleet.ErrRepositorySkipped
		}
		return detail, deleteError
	}
}

func shortCommit(commit gitdata.Hash) string {
	value := string(commit)
	if len(value) <= shortCommitLengthConstant {
		return value
	}
	return value[:shortCommitLengthConstant]
}
