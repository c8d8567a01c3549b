package fleet

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	sessionClientRequiredMessageConstant  = "fleet session requires a github client"
	sessionProviderMissingMessageConstant = "fleet session provider not configured"
)

var (
	errSessionClientRequired = errors.New(sessionClientRequiredMessageConstant)

	// ErrSessionProviderMissing indicates a command was built without a session provider.
	ErrSessionProviderMissing = errors.New(sessionProviderMissingMessageConstant)
)

// Session bundles the collaborators a fleet command needs for one invocation.
type Session struct {
	Logger    *zap.Logger
	Client    *githubapi.Client
	Selection SelectionOptions
	Runner    RunnerOptions
	Output    io.Writer
	Colorize  bool
}

// SessionProvider builds a Session from the loaded configuration.
type SessionProvider func(executionContext context.Context) (Session, error)

// SelectRepositories resolves the session's repository set.
func (session Session) SelectRepositories(executionContext context.Context) ([]githubapi.Repository, error) {
	if session.Client == nil {
		return nil, errSessionClientRequired
	}
	selector, selectorError := NewSelector(session.logger(), session.Client)
	if selectorError != nil {
		return nil, selectorError
	}
	return selector.Select(executionContext, session.Selection)
}

// Execute selects repositories and runs the task across them.
func (session Session) Execute(executionContext context.Context, task Task) ([]Result, error) {
	repositories, selectionError := session.SelectRepositories(executionContext)
	if selectionError != nil {
		return nil, selectionError
	}
	return session.ExecuteOn(executionContext, repositories, task)
}

// ExecuteOn runs the task across already selected repositories and renders
// the report. The returned error summarizes failed repositories.
func (session Session) ExecuteOn(executionContext context.Context, repositories []githubapi.Repository, task Task) ([]Result, error) {
	runner, runnerError := NewRunner(session.logger(), session.Runner)
	if runnerError != nil {
		return nil, runnerError
	}

	results, runError := runner.Run(executionContext, repositories, task)
	if session.Output != nil {
		if renderError := RenderReport(session.Output, results, ReportOptions{Colorize: session.Colorize}); renderError != nil {
			return results, renderError
		}
	}
	if runError != nil {
		return results, runError
	}
	return results, SummarizeFailures(results)
}

func (session Session) logger() *zap.Logger {
	if session.Logger == nil {
		return zap.NewNop()
	}
	return session.Logger
}
