package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/gitfleet/cmd/cli/repos"
	"github.com/temirov/gitfleet/internal/branches"
	"github.com/temirov/gitfleet/internal/files"
	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/githubapi"
	"github.com/temirov/gitfleet/internal/githubauth"
	"github.com/temirov/gitfleet/internal/labels"
	"github.com/temirov/gitfleet/internal/pullrequests"
	"github.com/temirov/gitfleet/internal/templates"
	"github.com/temirov/gitfleet/internal/utils"
	flagutils "github.com/temirov/gitfleet/internal/utils/flags"
)

const (
	applicationNameConstant                  = "gitfleet"
	applicationShortDescriptionConstant      = "Maintain many GitHub repositories through the git data API"
	applicationLongDescriptionConstant       = "gitfleet commits files atomically and keeps labels, templates, bot pull requests, and branches consistent across every repository of a GitHub user or organization."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	ownerFlagNameConstant                    = "owner"
	ownerFlagUsageConstant                   = "GitHub user or organization whose repositories are processed."
	ownerTypeFlagNameConstant                = "owner-type"
	ownerTypeFlagUsageConstant               = "Whether the owner is a user or an organization."
	repositoryFlagNameConstant               = "repo"
	repositoryFlagUsageConstant              = "Restrict processing to this repository (repeatable)."
	versionFlagConstant                      = "--version"
	versionOutputTemplateConstant            = "%s version: %s\n"
	unknownVersionConstant                   = "(devel)"
	commonConfigurationKeyConstant           = "common"
	commonLogLevelConfigKeyConstant          = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant         = commonConfigurationKeyConstant + ".log_format"
	githubConfigurationKeyConstant           = "github"
	githubBaseURLConfigKeyConstant           = githubConfigurationKeyConstant + ".base_url"
	githubTokenSourceConfigKeyConstant       = githubConfigurationKeyConstant + ".token_source"
	githubOwnerConfigKeyConstant             = githubConfigurationKeyConstant + ".owner"
	githubOwnerTypeConfigKeyConstant         = githubConfigurationKeyConstant + ".owner_type"
	githubRelevantConfigKeyConstant          = githubConfigurationKeyConstant + ".relevant_repositories"
	githubRequireRelevantConfigKeyConstant   = githubConfigurationKeyConstant + ".require_relevant"
	githubIncludeArchivedConfigKeyConstant   = githubConfigurationKeyConstant + ".include_archived"
	githubSortByActivityConfigKeyConstant    = githubConfigurationKeyConstant + ".sort_by_activity"
	githubActivityConcurrencyConfigKey       = githubConfigurationKeyConstant + ".activity_concurrency"
	githubPageSizeConfigKeyConstant          = githubConfigurationKeyConstant + ".page_size"
	githubRequestTimeoutConfigKeyConstant    = githubConfigurationKeyConstant + ".request_timeout"
	fleetConfigurationKeyConstant            = "fleet"
	fleetConcurrencyConfigKeyConstant        = fleetConfigurationKeyConstant + ".concurrency"
	fleetRequestsPerSecondConfigKeyConstant  = fleetConfigurationKeyConstant + ".requests_per_second"
	fleetBurstConfigKeyConstant              = fleetConfigurationKeyConstant + ".burst"
	toolsConfigurationKeyConstant            = "tools"
	labelsConfigurationKeyConstant           = toolsConfigurationKeyConstant + ".labels"
	templatesConfigurationKeyConstant        = toolsConfigurationKeyConstant + ".templates"
	mergeConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".merge"
	branchesConfigurationKeyConstant         = toolsConfigurationKeyConstant + ".branches"
	filesConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".files"
	environmentPrefixConstant                = "GITFLEET"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	userConfigurationDirectoryNameConstant   = "gitfleet"
	defaultConfigurationSearchPathConstant   = "."
	defaultConcurrencyConstant               = 4
	defaultRequestsPerSecondConstant         = 5.0
	defaultBurstConstant                     = 1
	defaultActivityConcurrencyConstant       = 8
	defaultRequestTimeoutConstant            = 30 * time.Second
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	configurationEnvironmentFieldConstant    = "environment_overrides"
	configurationOwnerFieldConstant          = "owner"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	tokenResolutionErrorTemplateConstant     = "unable to resolve github token: %w"
	clientCreationErrorTemplateConstant      = "unable to create github client: %w"
	ownerMissingErrorMessageConstant         = "github owner must be provided (--owner or github.owner)"
	rootCommandInfoMessageConstant           = "gitfleet CLI executed"
	rootCommandDebugMessageConstant          = "gitfleet CLI diagnostics"
	logFieldCommandNameConstant              = "command_name"
	logFieldArgumentCountConstant            = "argument_count"
	logFieldArgumentsConstant                = "arguments"
	loggerNotInitializedMessageConstant      = "logger not initialized"
	sessionCreatedMessageConstant            = "fleet session ready"
	logFieldOwnerTypeConstant                = "owner_type"
	logFieldBaseURLConstant                  = "base_url"
	logFieldRelevantRepositoryCountConstant  = "relevant_repository_count"
	logFieldConcurrencySessionConstant       = "concurrency"
	logFieldRequestsPerSecondSessionConstant = "requests_per_second"
)

var errOwnerMissing = errors.New(ownerMissingErrorMessageConstant)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	GitHub ApplicationGitHubConfiguration `mapstructure:"github"`
	Fleet  fleet.RunnerOptions            `mapstructure:"fleet"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationGitHubConfiguration describes the GitHub endpoint, credentials, and repository selection.
type ApplicationGitHubConfiguration struct {
	BaseURL              string        `mapstructure:"base_url"`
	TokenSource          string        `mapstructure:"token_source"`
	Owner                string        `mapstructure:"owner"`
	OwnerType            string        `mapstructure:"owner_type"`
	RelevantRepositories []string      `mapstructure:"relevant_repositories"`
	RequireRelevant      bool          `mapstructure:"require_relevant"`
	IncludeArchived      bool          `mapstructure:"include_archived"`
	SortByActivity       bool          `mapstructure:"sort_by_activity"`
	ActivityConcurrency  int           `mapstructure:"activity_concurrency"`
	PageSize             int           `mapstructure:"page_size"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Labels    labels.Configuration          `mapstructure:"labels"`
	Templates templates.Configuration       `mapstructure:"templates"`
	Merge     pullrequests.Configuration    `mapstructure:"merge"`
	Branches  branches.CommandConfiguration `mapstructure:"branches"`
	Files     files.Configuration           `mapstructure:"files"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	ownerFlagValue        string
	ownerTypeFlagValue    string
	repositoryFlagValues  []string
	tokenResolver         *githubauth.Resolver
	httpClient            githubapi.HTTPClient
	output                io.Writer
	versionResolver       func(context.Context) string
	exitFunction          func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		tokenResolver:       githubauth.NewResolver(nil, nil, nil),
		output:              os.Stdout,
		versionResolver:     resolveBuildVersion,
		exitFunction:        os.Exit,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	persistentFlags.StringVar(&application.ownerFlagValue, ownerFlagNameConstant, "", ownerFlagUsageConstant)
	flagutils.AddChoiceFlag(
		persistentFlags,
		&application.ownerTypeFlagValue,
		ownerTypeFlagNameConstant,
		string(githubapi.OrganizationOwnerType),
		[]string{string(githubapi.OrganizationOwnerType), string(githubapi.UserOwnerType)},
		ownerTypeFlagUsageConstant,
	)
	persistentFlags.StringArrayVar(&application.repositoryFlagValues, repositoryFlagNameConstant, nil, repositoryFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	filesBuilder := files.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() files.Configuration {
			return application.configuration.Tools.Files
		},
		SessionProvider: application.newSession,
	}
	if filesCommand, filesBuildError := filesBuilder.Build(); filesBuildError == nil {
		cobraCommand.AddCommand(filesCommand)
	}

	labelsBuilder := labels.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() labels.Configuration {
			return application.configuration.Tools.Labels
		},
		SessionProvider: application.newSession,
	}
	if labelsCommand, labelsBuildError := labelsBuilder.Build(); labelsBuildError == nil {
		cobraCommand.AddCommand(labelsCommand)
	}

	templatesBuilder := templates.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() templates.Configuration {
			return application.configuration.Tools.Templates
		},
		SessionProvider: application.newSession,
	}
	if templatesCommand, templatesBuildError := templatesBuilder.Build(); templatesBuildError == nil {
		cobraCommand.AddCommand(templatesCommand)
	}

	mergeBuilder := pullrequests.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() pullrequests.Configuration {
			return application.configuration.Tools.Merge
		},
		SessionProvider: application.newSession,
	}
	if mergeCommand, mergeBuildError := mergeBuilder.Build(); mergeBuildError == nil {
		cobraCommand.AddCommand(mergeCommand)
	}

	branchesBuilder := branches.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() branches.CommandConfiguration {
			return application.configuration.Tools.Branches
		},
		SessionProvider: application.newSession,
	}
	if branchesCommand, branchesBuildError := branchesBuilder.Build(); branchesBuildError == nil {
		cobraCommand.AddCommand(branchesCommand)
	}

	reposBuilder := repos.CommandGroupBuilder{
		LoggerProvider:  loggerProvider,
		SessionProvider: application.newSession,
	}
	if reposCommand, reposBuildError := reposBuilder.Build(); reposBuildError == nil {
		cobraCommand.AddCommand(reposCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	if versionRequested(os.Args[1:]) {
		fmt.Fprintf(os.Stdout, versionOutputTemplateConstant, applicationNameConstant, application.versionResolver(application.rootCommand.Context()))
		application.exitFunction(0)
		return nil
	}

	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, ownerFlagNameConstant) {
		application.configuration.GitHub.Owner = application.ownerFlagValue
	}
	if application.persistentFlagChanged(command, ownerTypeFlagNameConstant) {
		application.configuration.GitHub.OwnerType = application.ownerTypeFlagValue
	}
	if application.persistentFlagChanged(command, repositoryFlagNameConstant) {
		application.configuration.GitHub.RelevantRepositories = application.repositoryFlagValues
		application.configuration.GitHub.RequireRelevant = true
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.Strings(configurationEnvironmentFieldConstant, application.configurationMetadata.EnvironmentOverrides),
		zap.String(configurationOwnerFieldConstant, application.configuration.GitHub.Owner),
	)

	return nil
}

// newSession resolves credentials and repository selection for one command run.
func (application *Application) newSession(executionContext context.Context) (fleet.Session, error) {
	gitHubConfiguration := application.configuration.GitHub
	owner := strings.TrimSpace(gitHubConfiguration.Owner)
	if len(owner) == 0 {
		return fleet.Session{}, errOwnerMissing
	}
	ownerType, ownerTypeError := githubapi.ParseOwnerType(gitHubConfiguration.OwnerType)
	if ownerTypeError != nil {
		return fleet.Session{}, ownerTypeError
	}

	httpClient := application.httpClient
	if httpClient == nil {
		requestTimeout := gitHubConfiguration.RequestTimeout
		if requestTimeout <= 0 {
			requestTimeout = defaultRequestTimeoutConstant
		}
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	appClientFactory := func(appToken string) (githubauth.AppClient, error) {
		return githubapi.NewClient(application.logger, githubapi.Configuration{
			BaseURL:  gitHubConfiguration.BaseURL,
			Token:    appToken,
			PageSize: gitHubConfiguration.PageSize,
		}, httpClient)
	}
	token, tokenError := application.tokenResolver.WithAppClientFactory(appClientFactory).Resolve(executionContext, gitHubConfiguration.TokenSource)
	if tokenError != nil {
		return fleet.Session{}, fmt.Errorf(tokenResolutionErrorTemplateConstant, tokenError)
	}

	client, clientError := githubapi.NewClient(application.logger, githubapi.Configuration{
		BaseURL:  gitHubConfiguration.BaseURL,
		Token:    token,
		PageSize: gitHubConfiguration.PageSize,
	}, httpClient)
	if clientError != nil {
		return fleet.Session{}, fmt.Errorf(clientCreationErrorTemplateConstant, clientError)
	}

	application.logger.Debug(
		sessionCreatedMessageConstant,
		zap.String(configurationOwnerFieldConstant, owner),
		zap.String(logFieldOwnerTypeConstant, string(ownerType)),
		zap.String(logFieldBaseURLConstant, gitHubConfiguration.BaseURL),
		zap.Int(logFieldRelevantRepositoryCountConstant, len(gitHubConfiguration.RelevantRepositories)),
		zap.Int(logFieldConcurrencySessionConstant, application.configuration.Fleet.Concurrency),
		zap.Float64(logFieldRequestsPerSecondSessionConstant, application.configuration.Fleet.RequestsPerSecond),
	)

	return fleet.Session{
		Logger: application.logger,
		Client: client,
		Selection: fleet.SelectionOptions{
			OwnerType:            ownerType,
			Owner:                owner,
			RelevantRepositories: gitHubConfiguration.RelevantRepositories,
			RequireRelevant:      gitHubConfiguration.RequireRelevant,
			IncludeArchived:      gitHubConfiguration.IncludeArchived,
			SortByActivity:       gitHubConfiguration.SortByActivity,
			ActivityConcurrency:  gitHubConfiguration.ActivityConcurrency,
		},
		Runner:   application.configuration.Fleet,
		Output:   application.output,
		Colorize: fleet.WriterSupportsColor(application.output),
	}, nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func defaultConfigurationValues() map[string]any {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:         string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:        string(utils.LogFormatStructured),
		githubBaseURLConfigKeyConstant:          githubapi.DefaultBaseURL,
		githubTokenSourceConfigKeyConstant:      "",
		githubOwnerConfigKeyConstant:            "",
		githubOwnerTypeConfigKeyConstant:        string(githubapi.OrganizationOwnerType),
		githubRelevantConfigKeyConstant:         []string{},
		githubRequireRelevantConfigKeyConstant:  false,
		githubIncludeArchivedConfigKeyConstant:  false,
		githubSortByActivityConfigKeyConstant:   false,
		githubActivityConcurrencyConfigKey:      defaultActivityConcurrencyConstant,
		githubPageSizeConfigKeyConstant:         githubapi.DefaultPageSize,
		githubRequestTimeoutConfigKeyConstant:   defaultRequestTimeoutConstant.String(),
		fleetConcurrencyConfigKeyConstant:       defaultConcurrencyConstant,
		fleetRequestsPerSecondConfigKeyConstant: defaultRequestsPerSecondConstant,
		fleetBurstConfigKeyConstant:             defaultBurstConstant,
	}
	toolDefaults := []map[string]any{
		labels.DefaultConfigurationValues(labelsConfigurationKeyConstant),
		templates.DefaultConfigurationValues(templatesConfigurationKeyConstant),
		pullrequests.DefaultConfigurationValues(mergeConfigurationKeyConstant),
		branches.DefaultConfigurationValues(branchesConfigurationKeyConstant),
		files.DefaultConfigurationValues(filesConfigurationKeyConstant),
	}
	for _, toolDefault := range toolDefaults {
		for configurationKey, configurationValue := range toolDefault {
			defaultValues[configurationKey] = configurationValue
		}
	}
	return defaultValues
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func versionRequested(arguments []string) bool {
	for _, argument := range arguments {
		if argument == versionFlagConstant {
			return true
		}
	}
	return false
}

func resolveBuildVersion(context.Context) string {
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 {
		return unknownVersionConstant
	}
	return buildInformation.Main.Version
}
