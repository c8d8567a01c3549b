package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	defaultConcurrencyConstant          = 4
	defaultBurstConstant                = 1
	taskRequiredMessageConstant         = "fleet task must be provided"
	negativeConcurrencyMessageConstant  = "fleet concurrency must not be negative"
	negativeRateMessageConstant         = "fleet requests per second must not be negative"
	repositorySkippedMessageConstant    = "repository skipped"
	failureSummaryErrorTemplateConstant = "%d of %d repositories failed: %s"
	pacingErrorTemplateConstant         = "unable to pace repository iteration: %w"
	taskSucceededMessageConstant        = "repository task completed"
	taskSkippedMessageConstant          = "repository task skipped"
	taskFailedMessageConstant           = "repository task failed"
	runStartedMessageConstant           = "running fleet task"
	logFieldRepositoryConstant          = "repository"
	logFieldDetailConstant              = "detail"
	logFieldRepositoryCountConstant     = "repository_count"
	logFieldConcurrencyConstant         = "concurrency"
	failureSummarySeparatorConstant     = ", "
)

var (
	// ErrRepositorySkipped marks a repository the task chose not to change.
	ErrRepositorySkipped = errors.New(repositorySkippedMessageConstant)

	errTaskRequired        = errors.New(taskRequiredMessageConstant)
	errNegativeConcurrency = errors.New(negativeConcurrencyMessageConstant)
	errNegativeRate        = errors.New(negativeRateMessageConstant)
)

// Status classifies the outcome of a task for one repository.
type Status string

// Known task statuses.
const (
	StatusSucceeded Status = Status("succeeded")
	StatusSkipped   Status = Status("skipped")
	StatusFailed    Status = Status("failed")
)

// Task performs work against a single repository and returns a short detail line.
// Returning an error wrapping ErrRepositorySkipped records the repository as skipped.
type Task func(executionContext context.Context, repository githubapi.Repository) (string, error)

// Result records what happened to one repository.
type Result struct {
	Repository gitdata.RepositoryIdentifier
	Status     Status
	Detail     string
	Error      error
}

// RunnerOptions bound the pace of a fleet run.
type RunnerOptions struct {
	Concurrency       int     `mapstructure:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// FailureSummaryError reports the repositories whose task failed.
type FailureSummaryError struct {
	Failed []Result
	Total  int
}

// Error lists the failed repositories.
func (summaryError FailureSummaryError) Error() string {
	names := make([]string, 0, len(summaryError.Failed))
	for _, result := range summaryError.Failed {
		names = append(names, result.Repository.String())
	}
	return fmt.Sprintf(failureSummaryErrorTemplateConstant, len(summaryError.Failed), summaryError.Total, strings.Join(names, failureSummarySeparatorConstant))
}

// Unwrap exposes the individual task errors.
func (summaryError FailureSummaryError) Unwrap() []error {
	causes := make([]error, 0, len(summaryError.Failed))
	for _, result := range summaryError.Failed {
		if result.Error != nil {
			causes = append(causes, result.Error)
		}
	}
	return causes
}

// Runner executes a task across repositories.
type Runner struct {
	logger      *zap.Logger
	concurrency int
	limiter     *rate.Limiter
}

// NewRunner constructs a Runner. A zero request rate disables pacing.
func NewRunner(logger *zap.Logger, options RunnerOptions) (*Runner, error) {
	if options.Concurrency < 0 {
		return nil, errNegativeConcurrency
	}
	if options.RequestsPerSecond < 0 {
		return nil, errNegativeRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	concurrency := options.Concurrency
	if concurrency == 0 {
		concurrency = defaultConcurrencyConstant
	}
	burst := options.Burst
	if burst <= 0 {
		burst = defaultBurstConstant
	}
	limit := rate.Inf
	if options.RequestsPerSecond > 0 {
		limit = rate.Limit(options.RequestsPerSecond)
	}

	return &Runner{logger: logger, concurrency: concurrency, limiter: rate.NewLimiter(limit, burst)}, nil
}

// Run executes the task for every repository. A failing repository never stops
// the others; results are returned in the order the repositories were given.
func (runner *Runner) Run(executionContext context.Context, repositories []githubapi.Repository, task Task) ([]Result, error) {
	if task == nil {
		return nil, errTaskRequired
	}

	runner.logger.Info(
		runStartedMessageConstant,
		zap.Int(logFieldRepositoryCountConstant, len(repositories)),
		zap.Int(logFieldConcurrencyConstant, runner.concurrency),
	)

	results := make([]Result, len(repositories))
	workerPool := pool.New().WithMaxGoroutines(runner.concurrency).WithContext(executionContext)
	for index := range repositories {
		workerPool.Go(func(poolContext context.Context) error {
			results[index] = runner.runOne(poolContext, repositories[index], task)
			return nil
		})
	}
	_ = workerPool.Wait()

	if contextError := executionContext.Err(); contextError != nil {
		return results, contextError
	}
	return results, nil
}

func (runner *Runner) runOne(executionContext context.Context, repository githubapi.Repository, task Task) Result {
	result := Result{Repository: repository.Identifier}
	repositoryField := zap.String(logFieldRepositoryConstant, repository.Identifier.String())

	if waitError := runner.limiter.Wait(executionContext); waitError != nil {
		result.Status = StatusFailed
		result.Error = fmt.Errorf(pacingErrorTemplateConstant, waitError)
		result.Detail = result.Error.Error()
		runner.logger.Warn(taskFailedMessageConstant, repositoryField, zap.Error(result.Error))
		return result
	}

	detail, taskError := task(executionContext, repository)
	switch {
	case taskError == nil:
		result.Status = StatusSucceeded
		result.Detail = detail
		runner.logger.Info(taskSucceededMessageConstant, repositoryField, zap.String(logFieldDetailConstant, detail))
	case errors.Is(taskError, ErrRepositorySkipped):
		result.Status = StatusSkipped
		result.Detail = skippedDetail(detail, taskError)
		runner.logger.Info(taskSkippedMessageConstant, repositoryField, zap.String(logFieldDetailConstant, result.Detail))
	default:
		result.Status = StatusFailed
		result.Error = taskError
		result.Detail = taskError.Error()
		runner.logger.Warn(taskFailedMessageConstant, repositoryField, zap.Error(taskError))
	}
	return result
}

func skippedDetail(detail string, taskError error) string {
	if len(strings.TrimSpace(detail)) > 0 {
		return detail
	}
	return taskError.Error()
}

// SummarizeFailures returns a FailureSummaryError when any result failed.
func SummarizeFailures(results []Result) error {
	failed := make([]Result, 0)
	for _, result := range results {
		if result.Status == StatusFailed {
			failed = append(failed, result)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return FailureSummaryError{Failed: failed, Total: len(results)}
}
