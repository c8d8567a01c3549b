package pullrequests

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/githubapi"
	flagutils "github.com/temirov/gitfleet/internal/utils/flags"
)

const (
	pullRequestsCommandUseConstant              = "prs"
	pullRequestsCommandShortDescriptionConstant = "Work with bot pull requests"
	pullRequestsCommandLongDescriptionConstant  = "prs operates on pull requests opened by gitfleet across repositories."
	mergeCommandUseConstant                     = "merge"
	mergeCommandShortDescriptionConstant        = "Merge the open bot pull request in each repository"
	mergeCommandLongDescriptionConstant         = "merge finds the first open pull request whose title starts with the bot prefix, merges it, and confirms the merge. Repositories without one are reported as not present."
	unexpectedArgumentsErrorMessageConstant     = "prs merge does not accept positional arguments"
	commandExecutionErrorTemplateConstant       = "prs merge failed: %w"
	prefixFlagNameConstant                      = "prefix"
	prefixFlagDescriptionConstant               = "Title prefix identifying bot pull requests"
	methodFlagNameConstant                      = "method"
	methodFlagDescriptionConstant               = "Merge method applied to bot pull requests"
	dryRunFlagNameConstant                      = "dry-run"
	dryRunFlagDescriptionConstant               = "Report the pull requests that would be merged"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current merge configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the prs command hierarchy.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       fleet.SessionProvider
}

// Build constructs the prs command with the merge subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	pullRequestsCommand := &cobra.Command{
		Use:   pullRequestsCommandUseConstant,
		Short: pullRequestsCommandShortDescriptionConstant,
		Long:  pullRequestsCommandLongDescriptionConstant,
	}

	mergeCommand := &cobra.Command{
		Use:   mergeCommandUseConstant,
		Short: mergeCommandShortDescriptionConstant,
		Long:  mergeCommandLongDescriptionConstant,
		RunE:  builder.runMerge,
	}
	mergeCommand.Flags().String(prefixFlagNameConstant, "", prefixFlagDescriptionConstant)
	var methodFlagValue string
	flagutils.AddChoiceFlag(
		mergeCommand.Flags(),
		&methodFlagValue,
		methodFlagNameConstant,
		string(githubapi.MergeMethodSquash),
		[]string{string(githubapi.MergeMethodMerge), string(githubapi.MergeMethodSquash), string(githubapi.MergeMethodRebase)},
		methodFlagDescriptionConstant,
	)
	mergeCommand.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagDescriptionConstant)

	pullRequestsCommand.AddCommand(mergeCommand)
	return pullRequestsCommand, nil
}

func (builder *CommandBuilder) runMerge(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}
	if builder.SessionProvider == nil {
		return fleet.ErrSessionProviderMissing
	}

	mergeOptions, optionsError := builder.parseMergeOptions(command)
	if optionsError != nil {
		return optionsError
	}

	session, sessionError := builder.SessionProvider(command.Context())
	if sessionError != nil {
		return sessionError
	}

	service, serviceError := NewService(builder.resolveLogger(), session.Client)
	if serviceError != nil {
		return serviceError
	}

	if _, executionError := session.Execute(command.Context(), service.Task(mergeOptions)); executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}
	return nil
}

func (builder *CommandBuilder) parseMergeOptions(command *cobra.Command) (MergeOptions, error) {
	configuration := builder.resolveConfiguration()

	prefixFlagValue, prefixFlagError := command.Flags().GetString(prefixFlagNameConstant)
	if prefixFlagError != nil {
		return MergeOptions{}, prefixFlagError
	}
	if command.Flags().Changed(prefixFlagNameConstant) {
		configuration.TitlePrefix = prefixFlagValue
	}

	if command.Flags().Changed(methodFlagNameConstant) {
		configuration.Method = command.Flags().Lookup(methodFlagNameConstant).Value.String()
	}
	method, methodError := ParseMergeMethod(configuration.Method)
	if methodError != nil {
		return MergeOptions{}, methodError
	}

	if command.Flags().Changed(dryRunFlagNameConstant) {
		dryRunValue, dryRunError := command.Flags().GetBool(dryRunFlagNameConstant)
		if dryRunError != nil {
			return MergeOptions{}, dryRunError
		}
		configuration.DryRun = dryRunValue
	}

	return MergeOptions{TitlePrefix: configuration.TitlePrefix, Method: method, DryRun: configuration.DryRun}, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}
