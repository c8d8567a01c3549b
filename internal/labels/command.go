package labels

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	labelsCommandUseConstant                = "labels"
	labelsCommandShortDescriptionConstant   = "Maintain issue labels across repositories"
	labelsCommandLongDescriptionConstant    = "labels keeps issue label names, colors, and descriptions consistent across every selected repository."
	syncCommandUseConstant                  = "sync"
	syncCommandShortDescriptionConstant     = "Create missing labels and update drifted ones"
	syncCommandLongDescriptionConstant      = "sync lists the labels of each repository, creates the missing ones, and updates existing labels whose color or description differ. Names match case-insensitively."
	unexpectedArgumentsErrorMessageConstant = "labels sync does not accept positional arguments"
	commandExecutionErrorTemplateConstant   = "labels sync failed: %w"
	manifestFlagNameConstant                = "manifest"
	manifestFlagDescriptionConstant         = "Path to a YAML label manifest"
	dryRunFlagNameConstant                  = "dry-run"
	dryRunFlagDescriptionConstant           = "Report planned label changes without applying them"
	configuredLabelsErrorTemplateConstant   = "invalid configured labels: %w"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current labels configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the labels command hierarchy.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       fleet.SessionProvider
}

// Build constructs the labels command with the sync subcommand.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	labelsCommand := &cobra.Command{
		Use:   labelsCommandUseConstant,
		Short: labelsCommandShortDescriptionConstant,
		Long:  labelsCommandLongDescriptionConstant,
	}

	syncCommand := &cobra.Command{
		Use:   syncCommandUseConstant,
		Short: syncCommandShortDescriptionConstant,
		Long:  syncCommandLongDescriptionConstant,
		RunE:  builder.runSync,
	}
	syncCommand.Flags().String(manifestFlagNameConstant, "", manifestFlagDescriptionConstant)
	syncCommand.Flags().Bool(dryRunFlagNameConstant, false, dryRunFlagDescriptionConstant)

	labelsCommand.AddCommand(syncCommand)
	return labelsCommand, nil
}

func (builder *CommandBuilder) runSync(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}
	if builder.SessionProvider == nil {
		return fleet.ErrSessionProviderMissing
	}

	syncOptions, optionsError := builder.parseSyncOptions(command)
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

	if _, executionError := session.Execute(command.Context(), service.Task(syncOptions)); executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}
	return nil
}

func (builder *CommandBuilder) parseSyncOptions(command *cobra.Command) (SyncOptions, error) {
	configuration := builder.resolveConfiguration()

	manifestFlagValue, manifestFlagError := command.Flags().GetString(manifestFlagNameConstant)
	if manifestFlagError != nil {
		return SyncOptions{}, manifestFlagError
	}
	manifestPath := strings.TrimSpace(manifestFlagValue)
	if len(manifestPath) == 0 {
		manifestPath = configuration.ManifestPath
	} else {
		manifestPath = labelsConfigurationHomeDirectoryExpander.Expand(manifestPath)
	}

	dryRunValue := configuration.DryRun
	if command.Flags().Changed(dryRunFlagNameConstant) {
		flagDryRunValue, dryRunFlagError := command.Flags().GetBool(dryRunFlagNameConstant)
		if dryRunFlagError != nil {
			return SyncOptions{}, dryRunFlagError
		}
		dryRunValue = flagDryRunValue
	}

	desiredLabels, labelsError := resolveDesiredLabels(manifestPath, configuration.Labels)
	if labelsError != nil {
		return SyncOptions{}, labelsError
	}

	return SyncOptions{Labels: desiredLabels, DryRun: dryRunValue}, nil
}

// resolveDesiredLabels prefers a manifest, then configured labels, then DefaultLabels.
func resolveDesiredLabels(manifestPath string, configuredLabels []githubapi.Label) ([]githubapi.Label, error) {
	if len(manifestPath) > 0 {
		return LoadManifest(manifestPath)
	}
	if len(configuredLabels) > 0 {
		normalized, normalizeError := NormalizeLabels(configuredLabels)
		if normalizeError != nil {
			return nil, fmt.Errorf(configuredLabelsErrorTemplateConstant, normalizeError)
		}
		return normalized, nil
	}
	return DefaultLabels(), nil
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
