package pullrequests

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
	// DefaultTitlePrefix identifies bot pull requests.
	DefaultTitlePrefix = "[gitfleet-bot]"

	clientRequiredMessageConstant      = "pull request client must be provided"
	notPresentMessageConstant          = "not present"
	mergeUnverifiedTemplateConstant    = "pull request #%d reported merged but is not merged"
	mergeRejectedTemplateConstant      = "pull request #%d was not merged: %s"
	listErrorTemplateConstant          = "unable to list pull requests: %w"
	mergeErrorTemplateConstant         = "unable to merge pull request #%d: %w"
	verifyErrorTemplateConstant        = "unable to verify pull request #%d: %w"
	mergedDetailTemplateConstant       = "merged #%d (%s)"
	dryRunDetailTemplateConstant       = "would merge #%d %q"
	pullRequestMergedMessageConstant   = "merged pull request"
	pullRequestSelectedMessageConstant = "selected bot pull request"
	logFieldRepositoryConstant         = "repository"
	logFieldNumberConstant             = "number"
	logFieldTitleConstant              = "title"
	logFieldShaConstant                = "sha"
	shortShaLengthConstant             = 7
)

var (
	errClientRequired = errors.New(clientRequiredMessageConstant)

	// ErrPullRequestNotPresent indicates no open pull request carries the bot prefix.
	ErrPullRequestNotPresent = errors.New(notPresentMessageConstant)
)

// Client is the subset of the GitHub API used for merging.
type Client interface {
	ListPullRequests(executionContext context.Context, repository gitdata.RepositoryIdentifier, state githubapi.PullRequestState) ([]githubapi.PullRequest, error)
	MergePullRequest(executionContext context.Context, repository gitdata.RepositoryIdentifier, number int, method githubapi.MergeMethod) (githubapi.MergeResult, error)
	IsPullRequestMerged(executionContext context.Context, repository gitdata.RepositoryIdentifier, number int) (bool, error)
}

// MergeOptions configures bot pull request merging.
type MergeOptions struct {
	TitlePrefix string
	Method      githubapi.MergeMethod
	DryRun      bool
}

// MergeOutcome describes a merged pull request.
type MergeOutcome struct {
	PullRequest githubapi.PullRequest
	SHA         string
}

// Service merges bot pull requests in individual repositories.
type Service struct {
	logger *zap.Logger
	client Client
}

// NewService constructs a Service.
func NewService(logger *zap.Logger, client Client) (*Service, error) {
	if client == nil {
		return nil, errClientRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, client: client}, nil
}

// MergeBotPullRequest merges the first open pull request whose title starts
// with the prefix and confirms GitHub reports it merged.
func (service *Service) MergeBotPullRequest(executionContext context.Context, repository gitdata.RepositoryIdentifier, options MergeOptions) (MergeOutcome, error) {
	prefix := options.TitlePrefix
	if len(strings.TrimSpace(prefix)) == 0 {
		prefix = DefaultTitlePrefix
	}
	method := options.Method
	if len(method) == 0 {
		method = githubapi.MergeMethodSquash
	}

	openPullRequests, listError := service.client.ListPullRequests(executionContext, repository, githubapi.PullRequestStateOpen)
	if listError != nil {
		return MergeOutcome{}, fmt.Errorf(listErrorTemplateConstant, listError)
	}

	candidate, found := firstWithPrefix(openPullRequests, prefix)
	if !found {
		return MergeOutcome{}, ErrPullRequestNotPresent
	}

	repositoryField := zap.String(logFieldRepositoryConstant, repository.String())
	service.logger.Debug(pullRequestSelectedMessageConstant, repositoryField, zap.Int(logFieldNumberConstant, candidate.Number), zap.String(logFieldTitleConstant, candidate.Title))
	outcome := MergeOutcome{PullRequest: candidate}
	if options.DryRun {
		return outcome, nil
	}

	mergeResult, mergeError := service.client.MergePullRequest(executionContext, repository, candidate.Number, method)
	if mergeError != nil {
		return outcome, fmt.Errorf(mergeErrorTemplateConstant, candidate.Number, mergeError)
	}
	if !mergeResult.Merged {
		return outcome, fmt.Errorf(mergeRejectedTemplateConstant, candidate.Number, mergeResult.Message)
	}

	merged, verifyError := service.client.IsPullRequestMerged(executionContext, repository, candidate.Number)
	if verifyError != nil {
		return outcome, fmt.Errorf(verifyErrorTemplateConstant, candidate.Number, verifyError)
	}
	if !merged {
		return outcome, fmt.Errorf(mergeUnverifiedTemplateConstant, candidate.Number)
	}

	outcome.SHA = mergeResult.SHA
	service.logger.Info(pullRequestMergedMessageConstant, repositoryField, zap.Int(logFieldNumberConstant, candidate.Number), zap.String(logFieldShaConstant, mergeResult.SHA))
	return outcome, nil
}

// Task adapts MergeBotPullRequest to the fleet runner. Repositories without a
// bot pull request are reported as skipped.
func (service *Service) Task(options MergeOptions) fleet.Task {
	return func(executionContext context.Context, repository githubapi.Repository) (string, error) {
		outcome, mergeError := service.MergeBotPullRequest(executionContext, repository.Identifier, options)
		switch {
		case errors.Is(mergeError, ErrPullRequestNotPresent):
			return notPresentMessageConstant, fleet.ErrRepositorySkipped
		case mergeError != nil:
			return "", mergeError
		case options.DryRun:
			return fmt.Sprintf(dryRunDetailTemplateConstant, outcome.PullRequest.Number, outcome.PullRequest.Title), nil
		default:
			return fmt.Sprintf(mergedDetailTemplateConstant, outcome.PullRequest.Number, shortSHA(outcome.SHA)), nil
		}
	}
}

func firstWithPrefix(pullRequests []githubapi.PullRequest, prefix string) (githubapi.PullRequest, bool) {
	for _, pullRequest := range pullRequests {
		if strings.HasPrefix(pullRequest.Title, prefix) {
			return pullRequest, true
		}
	}
	return githubapi.PullRequest{}, false
}

func shortSHA(sha string) string {
	if len(sha) <= shortShaLengthConstant {
		return sha
	}
	return sha[:shortShaLengthConstant]
}
