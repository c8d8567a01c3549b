package branches

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/fleet"
)

const (
	branchesCommandUseConstant              = "branches"
	branchesCommandShortDescriptionConstant = "Manage branches across repositories"
	branchesCommandLongDescriptionConstant  = "branches maintains branch references across every selected repository."
	deleteCommandUseConstant                = "delete <branch>"
	deleteCommandShortDescriptionConstant   = "Delete a branch from every selected repository"
	deleteCommandLongDescriptionConstant    = "delete removes the named branch reference from each selected repository. Repositories without the branch are reported, and default branches are never deleted."
	commandExecutionErrorTemplateConstant   = "branch deletion failed: %w"
	branchArgumentMessageConstant           = "branches delete requires exactly one branch name"
	confirmationRequiredMessageConstant     = "refusing to delete branches without confirmation; pass --yes when not running interactively"
	deletionCancelledMessageConstant        = "branch deletion cancelled"
	confirmationPromptTemplateConstant      = "Delete branch %q from %d repositories?"
	flagDryRunNameConstant                  = "dry-run"
	flagDryRunDescriptionConstant           = "Report which repositories have the branch without deleting it"
	flagAssumeYesNameConstant               = "yes"
	flagAssumeYesDescriptionConstant        = "Delete without asking for confirmation"
)

var (
	errBranchArgument = errors.New(branchArgumentMessageConstant)

	// ErrConfirmationRequired indicates a non-interactive run without --yes.
	ErrConfirmationRequired = errors.New(confirmationRequiredMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current branch deletion configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the Cobra command for branch deletion.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       fleet.SessionProvider
	Prompter              ConfirmationPrompter
}

// Build constructs the branches command with the delete subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	branchesCommand := &cobra.Command{
		Use:   branchesCommandUseConstant,
		Short: branchesCommandShortDescriptionConstant,
		Long:  branchesCommandLongDescriptionConstant,
	}

	deleteCommand := &cobra.Command{
		Use:   deleteCommandUseConstant,
		Short: deleteCommandShortDescriptionConstant,
		Long:  deleteCommandLongDescriptionConstant,
		RunE:  builder.run,
	}
	deleteCommand.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)
	deleteCommand.Flags().Bool(flagAssumeYesNameConstant, false, flagAssumeYesDescriptionConstant)

	branchesCommand.AddCommand(deleteCommand)
	return branchesCommand, nil
}

// commandOptions holds parsed command values.
type commandOptions struct {
	delete    DeleteOptions
	assumeYes bool
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command, arguments)
	if optionsError != nil {
		return optionsError
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
		return fmt.Errorf(commandExecutionErrorTemplateConstant, selectionError)
	}

	if !options.delete.DryRun && !options.assumeYes {
		prompter, prompterError := builder.resolvePrompter()
		if prompterError != nil {
			return prompterError
		}
		confirmed, confirmError := prompter.Confirm(fmt.Sprintf(confirmationPromptTemplateConstant, options.delete.BranchName, len(repositories)))
		if confirmError != nil {
			return confirmError
		}
		if !confirmed {
			builder.resolveLogger().Info(deletionCancelledMessageConstant)
			return nil
		}
	}

	service, serviceError := NewService(builder.resolveLogger(), session.Client)
	if serviceError != nil {
		return serviceError
	}

	if _, executionError := session.ExecuteOn(command.Context(), repositories, service.Task(options.delete)); executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string) (commandOptions, error) {
	if len(arguments) != 1 || len(strings.TrimSpace(arguments[0])) == 0 {
		return commandOptions{}, errBranchArgument
	}
	configuration := builder.resolveConfiguration()

	dryRunValue := configuration.DryRun
	if command.Flags().Changed(flagDryRunNameConstant) {
		flagDryRunValue, dryRunFlagError := command.Flags().GetBool(flagDryRunNameConstant)
		if dryRunFlagError != nil {
			return commandOptions{}, dryRunFlagError
		}
		dryRunValue = flagDryRunValue
	}

	assumeYesValue := configuration.AssumeYes
	if command.Flags().Changed(flagAssumeYesNameConstant) {
		flagAssumeYesValue, assumeYesFlagError := command.Flags().GetBool(flagAssumeYesNameConstant)
		if assumeYesFlagError != nil {
			return commandOptions{}, assumeYesFlagError
		}
		assumeYesValue = flagAssumeYesValue
	}

	return commandOptions{
		delete:    DeleteOptions{BranchName: strings.TrimSpace(arguments[0]), DryRun: dryRunValue},
		assumeYes: assumeYesValue,
	}, nil
}

func (builder *CommandBuilder) resolvePrompter() (ConfirmationPrompter, error) {
	if builder.Prompter != nil {
		return builder.Prompter, nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, ErrConfirmationRequired
	}
	return SurveyConfirmationPrompter{}, nil
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

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}
