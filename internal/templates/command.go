package templates

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/commitflow"
	"github.com/temirov/gitfleet/internal/fleet"
)

const (
	templatesCommandUseConstant              = "templates"
	templatesCommandShortDescriptionConstant = "Maintain issue and pull request templates"
	templatesCommandLongDescriptionConstant  = "templates rewrites issue and pull request templates across repositories and proposes the changes as pull requests."
	updateCommandUseConstant                 = "update"
	updateCommandShortDescriptionConstant    = "Add the docs label checkbox to templates"
	updateCommandLongDescriptionConstant     = "update inserts the docs checkbox into the issue template, drops has-reproduction and good first review from the pull request template, commits both files in a single commit on the update branch, and opens a pull request."
	unexpectedArgumentsErrorMessageConstant  = "templates update does not accept positional arguments"
	commandExecutionErrorTemplateConstant    = "templates update failed: %w"
	branchFlagNameConstant                   = "branch"
	branchFlagDescriptionConstant            = "Branch receiving the template commit"
	baseBranchFlagNameConstant               = "base"
	baseBranchFlagDescriptionConstant        = "Base branch to read templates from (defaults to each repository's default branch)"
	createMissingFlagNameConstant            = "create-missing"
	createMissingFlagDescriptionConstant     = "Create templates that do not exist yet"
	dryRunFlagNameConstant                   = "dry-run"
	dryRunFlagDescriptionConstant            = "Report planned template changes without committing"
	retryLimitFlagNameConstant               = "conflict-retries"
	retryLimitFlagDescriptionConstant        = "Rebuild the commit on a moved branch tip up to this many times"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current templates configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the templates command hierarchy.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       fleet.SessionProvider
}

// Build constructs the templates command with the update subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	templatesCommand := &cobra.Command{
		Use:   templatesCommandUseConstant,
		Short: templatesCommandShortDescriptionConstant,
		Long:  templatesCommandLongDescriptionConstant,
	}

	updateCommand := &cobra.Command{
		Use:   updateCommandUseConstant,
		Short: updateCommandShortDescriptionConstant,
		Long:  updateCommandLongDescriptionConstant,
		RunE:  builder.runUpdate,
	}
	updateCommand.Flags().String(branchFlagNameConstant, "", branchFlagDescriptionConstant)
	updateCommand.Flags().String(baseBranchFlagNameConstant, "", baseBranchFlagDescriptionConstant)
	updateCommand.Flags().Bool(createMissingFlagNameConstant, false, createMissingFlagDescriptionConstant)
	updateCommand.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagDescriptionConstant)
	updateCommand.Flags().Int(retryLimitFlagNameConstant, 0, retryLimitFlagDescriptionConstant)

	templatesCommand.AddCommand(updateCommand)
	return templatesCommand, nil
}

func (builder *CommandBuilder) runUpdate(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}
	if builder.SessionProvider == nil {
		return fleet.ErrSessionProviderMissing
	}

	configuration, configurationError := builder.parseConfiguration(command)
	if configurationError != nil {
		return configurationError
	}

	session, sessionError := builder.SessionProvider(command.Context())
	if sessionError != nil {
		return sessionError
	}

	service, serviceError := NewService(builder.resolveLogger(), session.Client, commitflow.Options{ConflictRetryLimit: configuration.ConflictRetryLimit})
	if serviceError != nil {
		return serviceError
	}

	if _, executionError := session.Execute(command.Context(), service.Task(configuration.updateOptions())); executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) (Configuration, error) {
	configuration := builder.resolveConfiguration()

	branchFlagValue, branchFlagError := command.Flags().GetString(branchFlagNameConstant)
	if branchFlagError != nil {
		return Configuration{}, branchFlagError
	}
	if trimmedBranch := strings.TrimSpace(branchFlagValue); len(trimmedBranch) > 0 {
		configuration.Branch = trimmedBranch
	}

	baseFlagValue, baseFlagError := command.Flags().GetString(baseBranchFlagNameConstant)
	if baseFlagError != nil {
		return Configuration{}, baseFlagError
	}
	if trimmedBase := strings.TrimSpace(baseFlagValue); len(trimmedBase) > 0 {
		configuration.BaseBranch = trimmedBase
	}

	if command.Flags().Changed(createMissingFlagNameConstant) {
		createMissingValue, createMissingError := command.Flags().GetBool(createMissingFlagNameConstant)
		if createMissingError != nil {
			return Configuration{}, createMissingError
		}
		configuration.CreateMissing = createMissingValue
	}

	if command.Flags().Changed(dryRunFlagNameConstant) {
		dryRunValue, dryRunError := command.Flags().GetBool(dryRunFlagNameConstant)
		if dryRunError != nil {
			return Configuration{}, dryRunError
		}
		configuration.DryRun = dryRunValue
	}

	if command.Flags().Changed(retryLimitFlagNameConstant) {
		retryLimitValue, retryLimitError := command.Flags().GetInt(retryLimitFlagNameConstant)
		if retryLimitError != nil {
			return Configuration{}, retryLimitError
		}
		if retryLimitValue < 0 {
			return Configuration{}, commitflow.ErrNegativeRetryLimit
		}
		configuration.ConflictRetryLimit = retryLimitValue
	}

	return configuration, nil
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
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	return configuration.sanitize()
}
