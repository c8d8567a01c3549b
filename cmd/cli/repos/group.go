package repos

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/fleet"
)

const (
	groupUseConstant                        = "repos"
	groupShortDescription                   = "Inspect the repository fleet"
	groupLongDescription                    = "repos groups subcommands that describe the repositories gitfleet would operate on."
	listUseConstant                         = "list"
	listShortDescription                    = "List the selected repositories"
	listLongDescription                     = "list prints the repositories chosen by the configured owner, relevant repository filter, archive policy, and activity ordering."
	unexpectedArgumentsErrorMessageConstant = "repos list does not accept positional arguments"
	listErrorTemplateConstant               = "repos list failed: %w"
	repositoriesSelectedMessageConstant     = "repositories selected"
	logFieldRepositoryCountConstant         = "repository_count"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// CommandGroupBuilder assembles the repos command group.
type CommandGroupBuilder struct {
	LoggerProvider  LoggerProvider
	SessionProvider fleet.SessionProvider
}

// Build constructs the repos command hierarchy.
func (builder *CommandGroupBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   groupUseConstant,
		Short: groupShortDescription,
		Long:  groupLongDescription,
	}

	listCommand := &cobra.Command{
		Use:   listUseConstant,
		Short: listShortDescription,
		Long:  listLongDescription,
		RunE:  builder.runList,
	}
	command.AddCommand(listCommand)

	return command, nil
}

func (builder *CommandGroupBuilder) runList(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}
	if builder.SessionProvider == nil {
		return fleet.ErrSessionProviderMissing
	}

	session, sessionError := builder.SessionProvider(command.Context())
	if sessionError != nil {
		return sessionError
	}

	repositories, selectionError := session.SelectRepositories(command.Context())
	if selectionError != nil {
		return fmt.Errorf(listErrorTemplateConstant, selectionError)
	}
	builder.resolveLogger().Debug(repositoriesSelectedMessageConstant, zap.Int(logFieldRepositoryCountConstant, len(repositories)))

	if session.Output == nil {
		return nil
	}
	return fleet.RenderRepositories(session.Output, repositories)
}

func (builder *CommandGroupBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}
