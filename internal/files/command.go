package files

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
	filesCommandUseConstant                 = "files"
	filesCommandShortDescriptionConstant    = "Commit files across repositories"
	filesCommandLongDescriptionConstant     = "files writes local files into repositories through the git data API without cloning them."
	commitCommandUseConstant                = "commit"
	commitCommandShortDescriptionConstant   = "Commit local files to a branch of every selected repository"
	commitCommandLongDescriptionConstant    = "commit uploads each --file LOCAL=PATH mapping and records all of them in a single commit on the target branch. The branch is created from the base branch when it does not exist, and the branch only moves when the whole commit succeeds."
	unexpectedArgumentsErrorMessageConstant = "files commit does not accept positional arguments"
	messageMissingErrorMessageConstant      = "commit message must be provided (--message)"
	commandExecutionErrorTemplateConstant   = "files commit failed: %w"
	fileFlagNameConstant                    = "file"
	fileFlagDescriptionConstant             = "File mapping LOCAL=PATH (repeatable)"
	branchFlagNameConstant                  = "branch"
	branchFlagDescriptionConstant           = "Branch receiving the commit (defaults to each repository's default branch)"
	baseBranchFlagNameConstant              = "base"
	baseBranchFlagDescriptionConstant       = "Branch the target is created from when missing"
	messageFlagNameConstant                 = "message"
	messageFlagShorthandConstant            = "m"
	messageFlagDescriptionConstant          = "Commit message"
	retryLimitFlagNameConstant              = "conflict-retries"
	retryLimitFlagDescriptionConstant       = "Rebuild the commit on a moved branch tip up to this many times"
	dryRunFlagNameConstant                  = "dry-run"
	dryRunFlagDescriptionConstant           = "Report the planned commits without writing anything"
)

var errMessageMissing = errors.New(messageMissingErrorMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current files configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the files command hierarchy.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       fleet.SessionProvider
	FileSystem            FileSystem
}

// Build constructs the files command with the commit subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	filesCommand := &cobra.Command{
		Use:   filesCommandUseConstant,
		Short: filesCommandShortDescriptionConstant,
		Long:  filesCommandLongDescriptionConstant,
	}

	commitCommand := &cobra.Command{
		Use:   commitCommandUseConstant,
		Short: commitCommandShortDescriptionConstant,
		Long:  commitCommandLongDescriptionConstant,
		RunE:  builder.runCommit,
	}
	commitCommand.Flags().StringArray(fileFlagNameConstant, nil, fileFlagDescriptionConstant)
	commitCommand.Flags().String(branchFlagNameConstant, "", branchFlagDescriptionConstant)
	commitCommand.Flags().String(baseBranchFlagNameConstant, "", baseBranchFlagDescriptionConstant)
	commitCommand.Flags().StringP(messageFlagNameConstant, messageFlagShorthandConstant, "", messageFlagDescriptionConstant)
	commitCommand.Flags().Int(retryLimitFlagNameConstant, 0, retryLimitFlagDescriptionConstant)
	commitCommand.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagDescriptionConstant)

	filesCommand.AddCommand(commitCommand)
	return filesCommand, nil
}

func (builder *CommandBuilder) runCommit(command *cobra.Command, arguments []string) error {
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
	if len(configuration.Message) == 0 {
		return errMessageMissing
	}

	mappings, mappingError := ParseMappings(configuration.Files)
	if mappingError != nil {
		return mappingError
	}
	fileChanges, loadError := NewLoader(builder.FileSystem).Load(mappings)
	if loadError != nil {
		return loadError
	}

	session, sessionError := builder.SessionProvider(command.Context())
	if sessionError != nil {
		return sessionError
	}

	service, serviceError := NewService(builder.resolveLogger(), session.Client, commitflow.Options{ConflictRetryLimit: configuration.ConflictRetryLimit})
	if serviceError != nil {
		return serviceError
	}

	commitOptions := CommitOptions{
		Branch:     configuration.Branch,
		BaseBranch: configuration.BaseBranch,
		Message:    configuration.Message,
		Files:      fileChanges,
		DryRun:     configuration.DryRun,
	}
	if _, executionError := session.Execute(command.Context(), service.Task(commitOptions)); executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) (Configuration, error) {
	configuration := builder.resolveConfiguration()

	if command.Flags().Changed(fileFlagNameConstant) {
		fileValues, fileFlagError := command.Flags().GetStringArray(fileFlagNameConstant)
		if fileFlagError != nil {
			return Configuration{}, fileFlagError
		}
		configuration.Files = fileValues
	}

	for flagName, target := range map[string]*string{
		branchFlagNameConstant:     &configuration.Branch,
		baseBranchFlagNameConstant: &configuration.BaseBranch,
		messageFlagNameConstant:    &configuration.Message,
	} {
		flagValue, flagError := command.Flags().GetString(flagName)
		if flagError != nil {
			return Configuration{}, flagError
		}
		if trimmedValue := strings.TrimSpace(flagValue); len(trimmedValue) > 0 {
			*target = trimmedValue
		}
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

	if command.Flags().Changed(dryRunFlagNameConstant) {
		dryRunValue, dryRunError := command.Flags().GetBool(dryRunFlagNameConstant)
		if dryRunError != nil {
			return Configuration{}, dryRunError
		}
		configuration.DryRun = dryRunValue
	}

	return configuration.sanitize(), nil
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
