package branches

const (
	configurationDryRunKeyConstant    = "dry_run"
	configurationAssumeYesKeyConstant = "assume_yes"
)

// CommandConfiguration captures configuration values for the branch deletion command.
type CommandConfiguration struct {
	DryRun    bool `mapstructure:"dry_run"`
	AssumeYes bool `mapstructure:"assume_yes"`
}

// DefaultCommandConfiguration provides baseline configuration values for branch deletion.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		DryRun:    false,
		AssumeYes: false,
	}
}

// DefaultConfigurationValues produces Viper defaults for branch deletion.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + "." + configurationDryRunKeyConstant:    defaults.DryRun,
		rootKey + "." + configurationAssumeYesKeyConstant: defaults.AssumeYes,
	}
}
