package files

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/commitflow"
	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	serviceRequiredMessageConstant  = "files service requires a git data service"
	targetBranchMissingMessage      = "target branch could not be determined"
	committedDetailTemplateConstant = "committed %d files to %s as %s"
	createdBranchSuffixConstant     = " (branch created)"
	dryRunDetailTemplateConstant    = "would commit %d files to %s"
	dryRunMessageConstant           = "dry run; commit skipped"
	logFieldRepositoryConstant      = "repository"
	logFieldBranchConstant          = "branch"
	logFieldFileCountConstant       = "file_count"
	shortCommitLengthConstant       = 7
)

var (
	errServiceRequired     = errors.New(serviceRequiredMessageConstant)
	errTargetBranchMissing = errors.New(targetBranchMissingMessage)
)

// CommitOptions describes the commit pushed to every repository. Empty
// branches fall back to each repository's default branch.
type CommitOptions struct {
	Branch     string
	BaseBranch string
	Message    string
	Files      []commitflow.FileChange
	DryRun     bool
}

// Service commits file sets through a commitflow.Workflow.
type Service struct {
	logger   *zap.Logger
	workflow *commitflow.Workflow
}

// NewService constructs a Service.
func NewService(logger *zap.Logger, objectService gitdata.ObjectService, workflowOptions commitflow.Options) (*Service, error) {
	if objectService == nil {
		return nil, errServiceRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	workflow, workflowError := commitflow.NewWorkflow(commitflow.Dependencies{Logger: logger, Service: objectService}, workflowOptions)
	if workflowError != nil {
		return nil, workflowError
	}
	return &Service{logger: logger, workflow: workflow}, nil
}

// Commit writes the files to the target branch of one repository. A dry run
// resolves branches and returns without touching the repository.
func (service *Service) Commit(executionContext context.Context, repository githubapi.Repository, options CommitOptions) (commitflow.Result, error) {
	if len(options.Files) == 0 {
		return commitflow.Result{State: commitflow.StateFailed}, ErrNoFiles
	}
	targetBranch := firstNonEmpty(options.Branch, repository.DefaultBranch)
	if len(targetBranch) == 0 {
		return commitflow.Result{State: commitflow.StateFailed}, errTargetBranchMissing
	}
	baseBranch := firstNonEmpty(options.BaseBranch, repository.DefaultBranch, targetBranch)

	if options.DryRun {
		service.logger.Info(
			dryRunMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.Identifier.String()),
			zap.String(logFieldBranchConstant, targetBranch),
			zap.Int(logFieldFileCountConstant, len(options.Files)),
		)
		return commitflow.Result{State: commitflow.StateIdle}, nil
	}

	return service.workflow.Commit(executionContext, commitflow.Request{
		Repository:   repository.Identifier,
		BaseBranch:   baseBranch,
		TargetBranch: targetBranch,
		Message:      options.Message,
		Files:        options.Files,
	})
}

// Task adapts Commit to the fleet runner.
func (service *Service) Task(options CommitOptions) fleet.Task {
	return func(executionContext context.Context, repository githubapi.Repository) (string, error) {
		targetBranch := firstNonEmpty(options.Branch, repository.DefaultBranch)
		result, commitError := service.Commit(executionContext, repository, options)
		if commitError != nil {
			return "", commitError
		}
		if options.DryRun {
			return fmt.Sprintf(dryRunDetailTemplateConstant, len(options.Files), targetBranch), nil
		}
		detail := fmt.Sprintf(committedDetailTemplateConstant, result.StagedFiles, targetBranch, shortCommit(result.Commit))
		if result.Branch.Outcome == gitdata.BranchCreated {
			detail += createdBranchSuffixConstant
		}
		return detail, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmedValue := strings.TrimSpace(value); len(trimmedValue) > 0 {
			return trimmedValue
		}
	}
	return ""
}

func shortCommit(commit gitdata.Hash) string {
	value := commit.String()
	if len(value) > shortCommitLengthConstant {
		return value[:shortCommitLengthConstant]
	}
	return value
}
