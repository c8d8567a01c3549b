package templates

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
	// DefaultIssueTemplatePath locates the issue template.
	DefaultIssueTemplatePath = ".github/ISSUE_TEMPLATE.md"
	// DefaultPullRequestTemplatePath locates the pull request template.
	DefaultPullRequestTemplatePath = ".github/PULL_REQUEST_TEMPLATE.md"
	// DefaultBranchName is the branch carrying template updates.
	DefaultBranchName = "gitfleet-bot/templates"
	// DefaultCommitMessage describes the template commit.
	DefaultCommitMessage = "[gitfleet-bot] Update the Templates with docs label"
	// DefaultPullRequestTitle titles the proposed change.
	DefaultPullRequestTitle = "[gitfleet-bot] Update the Issue/PR Templates with docs label"
	// DefaultPullRequestBody explains the proposed change.
	DefaultPullRequestBody = "This PR contains an update to the issue and pr templates that add the `docs` label, also removes `has-repro` and `good first review` from pr"

	clientRequiredMessageConstant         = "template client must be provided"
	baseBranchMissingMessageConstant      = "base branch could not be determined"
	templatesCurrentMessageConstant       = "templates already up to date"
	templateMissingTemplateConstant       = "template %s not found on %s"
	readTemplateErrorTemplateConstant     = "unable to read %s: %w"
	transformErrorTemplateConstant        = "unable to transform %s: %w"
	commitErrorTemplateConstant           = "unable to commit templates: %w"
	pullRequestErrorTemplateConstant      = "unable to open pull request: %w"
	openedDetailTemplateConstant          = "opened pull request #%d"
	existingDetailTemplateConstant        = "updated %s; pull request already open"
	dryRunDetailTemplateConstant          = "would update %s"
	pathListSeparatorConstant             = ", "
	templatesCommittedMessageConstant     = "committed template updates"
	pullRequestOpenedMessageConstant      = "opened template pull request"
	pullRequestExistsMessageConstant      = "template pull request already open"
	missingTemplateCreatedMessageConstant = "template missing; creating default"
	logFieldRepositoryConstant            = "repository"
	logFieldPathConstant                  = "path"
	logFieldCommitConstant                = "commit"
	logFieldNumberConstant                = "number"
	logFieldBranchConstant                = "branch"
)

var (
	errClientRequired    = errors.New(clientRequiredMessageConstant)
	errBaseBranchMissing = errors.New(baseBranchMissingMessageConstant)

	// ErrTemplatesCurrent indicates no template needed a change.
	ErrTemplatesCurrent = errors.New(templatesCurrentMessageConstant)
)

// TemplateMissingError reports a template absent from the base branch.
type TemplateMissingError struct {
	Path   string
	Branch string
}

// Error describes the missing template.
func (missingError TemplateMissingError) Error() string {
	return fmt.Sprintf(templateMissingTemplateConstant, missingError.Path, missingError.Branch)
}

// Client is the subset of the GitHub API used for template updates.
type Client interface {
	gitdata.ObjectService
	CreatePullRequest(executionContext context.Context, repository gitdata.RepositoryIdentifier, pullRequest githubapi.NewPullRequest) (githubapi.PullRequest, error)
}

// UpdateOptions configures a template update.
type UpdateOptions struct {
	BaseBranch              string
	Branch                  string
	CommitMessage           string
	PullRequestTitle        string
	PullRequestBody         string
	IssueTemplatePath       string
	PullRequestTemplatePath string
	CreateMissing           bool
	DryRun                  bool
}

// UpdateOutcome describes what an update changed.
type UpdateOutcome struct {
	ChangedPaths       []string
	Commit             gitdata.Hash
	PullRequest        githubapi.PullRequest
	PullRequestExisted bool
}

type templateTransform func(content string) (string, bool, error)

type templateDefinition struct {
	path           string
	transform      templateTransform
	defaultContent string
}

// Service updates templates in individual repositories.
type Service struct {
	logger   *zap.Logger
	client   Client
	reader   *gitdata.FileReader
	workflow *commitflow.Workflow
}

// NewService constructs a Service committing through a commitflow.Workflow.
func NewService(logger *zap.Logger, client Client, workflowOptions commitflow.Options) (*Service, error) {
	if client == nil {
		return nil, errClientRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reader, readerError := gitdata.NewFileReader(logger, client)
	if readerError != nil {
		return nil, readerError
	}
	workflow, workflowError := commitflow.NewWorkflow(commitflow.Dependencies{Logger: logger, Service: client}, workflowOptions)
	if workflowError != nil {
		return nil, workflowError
	}

	return &Service{logger: logger, client: client, reader: reader, workflow: workflow}, nil
}

// Update reads both templates from the base branch, commits the transformed
// versions to the update branch in one commit, and opens a pull request.
// An already open pull request for the branch is not an error.
func (service *Service) Update(executionContext context.Context, repository githubapi.Repository, options UpdateOptions) (UpdateOutcome, error) {
	options = options.withDefaults()
	baseBranch := strings.TrimSpace(options.BaseBranch)
	if len(baseBranch) == 0 {
		baseBranch = repository.DefaultBranch
	}
	if len(baseBranch) == 0 {
		return UpdateOutcome{}, errBaseBranchMissing
	}

	identifier := repository.Identifier
	repositoryField := zap.String(logFieldRepositoryConstant, identifier.String())

	definitions := []templateDefinition{
		{path: options.IssueTemplatePath, transform: TransformIssueTemplate, defaultContent: DefaultIssueTemplate},
		{path: options.PullRequestTemplatePath, transform: TransformPullRequestTemplate, defaultContent: DefaultPullRequestTemplate},
	}

	outcome := UpdateOutcome{}
	fileChanges := make([]commitflow.FileChange, 0, len(definitions))
	for _, definition := range definitions {
		currentContent, found, readError := service.reader.ReadFile(executionContext, identifier, baseBranch, definition.path)
		if readError != nil {
			return outcome, fmt.Errorf(readTemplateErrorTemplateConstant, definition.path, readError)
		}

		var updatedContent string
		switch {
		case !found && options.CreateMissing:
			service.logger.Info(missingTemplateCreatedMessageConstant, repositoryField, zap.String(logFieldPathConstant, definition.path))
			updatedContent = definition.defaultContent
		case !found:
			return outcome, TemplateMissingError{Path: definition.path, Branch: baseBranch}
		default:
			transformedContent, changed, transformError := definition.transform(currentContent)
			if transformError != nil {
				return outcome, fmt.Errorf(transformErrorTemplateConstant, definition.path, transformError)
			}
			if !changed {
				continue
			}
			updatedContent = transformedContent
		}

		outcome.ChangedPaths = append(outcome.ChangedPaths, definition.path)
		fileChanges = append(fileChanges, commitflow.FileChange{Path: definition.path, Content: updatedContent})
	}

	if len(fileChanges) == 0 {
		return outcome, ErrTemplatesCurrent
	}
	if options.DryRun {
		return outcome, nil
	}

	commitResult, commitError := service.workflow.Commit(executionContext, commitflow.Request{
		Repository:   identifier,
		BaseBranch:   baseBranch,
		TargetBranch: options.Branch,
		Message:      options.CommitMessage,
		Files:        fileChanges,
	})
	if commitError != nil {
		return outcome, fmt.Errorf(commitErrorTemplateConstant, commitError)
	}
	outcome.Commit = commitResult.Commit
	service.logger.Info(templatesCommittedMessageConstant, repositoryField, zap.String(logFieldBranchConstant, options.Branch), zap.String(logFieldCommitConstant, string(commitResult.Commit)))

	pullRequest, pullRequestError := service.client.CreatePullRequest(executionContext, identifier, githubapi.NewPullRequest{
		Title: options.PullRequestTitle,
		Body:  options.PullRequestBody,
		Head:  options.Branch,
		Base:  baseBranch,
	})
	switch {
	case pullRequestError == nil:
		outcome.PullRequest = pullRequest
		service.logger.Info(pullRequestOpenedMessageConstant, repositoryField, zap.Int(logFieldNumberConstant, pullRequest.Number))
	case gitdata.IsConflict(pullRequestError):
		outcome.PullRequestExisted = true
		service.logger.Info(pullRequestExistsMessageConstant, repositoryField, zap.String(logFieldBranchConstant, options.Branch))
	default:
		return outcome, fmt.Errorf(pullRequestErrorTemplateConstant, pullRequestError)
	}
	return outcome, nil
}

// Task adapts Update to the fleet runner.
func (service *Service) Task(options UpdateOptions) fleet.Task {
	return func(executionContext context.Context, repository githubapi.Repository) (string, error) {
		outcome, updateError := service.Update(executionContext, repository, options)
		switch {
		case errors.Is(updateError, ErrTemplatesCurrent):
			return templatesCurrentMessageConstant, fleet.ErrRepositorySkipped
		case updateError != nil:
			return "", updateError
		}

		changedPaths := strings.Join(outcome.ChangedPaths, pathListSeparatorConstant)
		switch {
		case options.DryRun:
			return fmt.Sprintf(dryRunDetailTemplateConstant, changedPaths), nil
		case outcome.PullRequestExisted:
			return fmt.Sprintf(existingDetailTemplateConstant, changedPaths), nil
		default:
			return fmt.Sprintf(openedDetailTemplateConstant, outcome.PullRequest.Number), nil
		}
	}
}

func (options UpdateOptions) withDefaults() UpdateOptions {
	resolved := options
	resolved.Branch = valueOrDefault(options.Branch, DefaultBranchName)
	resolved.CommitMessage = valueOrDefault(options.CommitMessage, DefaultCommitMessage)
	resolved.PullRequestTitle = valueOrDefault(options.PullRequestTitle, DefaultPullRequestTitle)
	resolved.PullRequestBody = valueOrDefault(options.PullRequestBody, DefaultPullRequestBody)
	resolved.IssueTemplatePath = valueOrDefault(options.IssueTemplatePath, DefaultIssueTemplatePath)
	resolved.PullRequestTemplatePath = valueOrDefault(options.PullRequestTemplatePath, DefaultPullRequestTemplatePath)
	return resolved
}

func valueOrDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallback
	}
	return trimmed
}
