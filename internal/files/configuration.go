package files

import "strings"

const (
	configurationBranchKeyConstant     = "branch"
	configurationBaseBranchKeyConstant = "base_branch"
	configurationMessageKeyConstant    = "message"
	configurationFilesKeyConstant      = "files"
	configurationRetryLimitKeyConstant = "conflict_retry_limit"
	configurationDryRunKeyConstant     = "dry_run"
)

// Configuration stores defaults for files commit.
type Configuration struct {
	Branch             string   `mapstructure:"branch"`
	BaseBranch         string   `mapstructure:"base_branch"`
	Message            string   `mapstructure:"message"`
	Files              []string `mapstructure:"files"`
	ConflictRetryLimit int      `mapstructure:"conflict_retry_limit"`
	DryRun             bool     `mapstructure:"dry_run"`
}

// DefaultConfiguration provides baseline settings: commit to each
// repository's default branch with first-writer-wins conflicts.
func DefaultConfiguration() Configuration {
	return Configuration{}
}

// DefaultConfigurationValues produces Viper defaults under rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		rootKey + "." + configurationBranchKeyConstant:     defaults.Branch,
		rootKey + "." + configurationBaseBranchKeyConstant: defaults.BaseBranch,
		rootKey + "." + configurationMessageKeyConstant:    defaults.Message,
		rootKey + "." + configurationFilesKeyConstant:      []string{},
		rootKey + "." + configurationRetryLimitKeyConstant: defaults.ConflictRetryLimit,
		rootKey + "." + configurationDryRunKeyConstant:     defaults.DryRun,
	}
}

func (configuration Configuration) sanitize() Configuration {
	sanitized := configuration
	sanitized.Branch = strings.TrimSpace(configuration.Branch)
	sanitized.BaseBranch = strings.TrimSpace(configuration.BaseBranch)
	sanitized.Message = strings.TrimSpace(configuration.Message)
	if sanitized.ConflictRetryLimit < 0 {
		sanitized.ConflictRetryLimit = 0
	}
	sanitized.Files = make([]string, 0, len(configuration.Files))
	for _, fileValue := range configuration.Files {
		if trimmedValue := strings.TrimSpace(fileValue); len(trimmedValue) > 0 {
			sanitized.Files = append(sanitized.Files, trimmedValue)
		}
	}
	return sanitized
}
