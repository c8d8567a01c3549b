package templates

import "strings"

const (
	configurationBranchKeyConstant              = "branch"
	configurationBaseBranchKeyConstant          = "base_branch"
	configurationCommitMessageKeyConstant       = "commit_message"
	configurationPullRequestTitleKeyConstant    = "pull_request_title"
	configurationPullRequestBodyKeyConstant     = "pull_request_body"
	configurationIssueTemplateKeyConstant       = "issue_template_path"
	configurationPullRequestTemplateKeyConstant = "pull_request_template_path"
	configurationCreateMissingKeyConstant       = "create_missing"
	configurationDryRunKeyConstant              = "dry_run"
	configurationRetryLimitKeyConstant          = "conflict_retry_limit"
)

// Configuration stores template update settings.
type Configuration struct {
	Branch                  string `mapstructure:"branch"`
	BaseBranch              string `mapstructure:"base_branch"`
	CommitMessage           string `mapstructure:"commit_message"`
	PullRequestTitle        string `mapstructure:"pull_request_title"`
	PullRequestBody         string `mapstructure:"pull_request_body"`
	IssueTemplatePath       string `mapstructure:"issue_template_path"`
	PullRequestTemplatePath string `mapstructure:"pull_request_template_path"`
	CreateMissing           bool   `mapstructure:"create_missing"`
	DryRun                  bool   `mapstructure:"dry_run"`
	ConflictRetryLimit      int    `mapstructure:"conflict_retry_limit"`
}

// DefaultConfiguration provides baseline template update settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Branch:                  DefaultBranchName,
		CommitMessage:           DefaultCommitMessage,
		PullRequestTitle:        DefaultPullRequestTitle,
		PullRequestBody:         DefaultPullRequestBody,
		IssueTemplatePath:       DefaultIssueTemplatePath,
		PullRequestTemplatePath: DefaultPullRequestTemplatePath,
	}
}

// DefaultConfigurationValues produces Viper defaults under rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		rootKey + "." + configurationBranchKeyConstant:              defaults.Branch,
		rootKey + "." + configurationBaseBranchKeyConstant:          defaults.BaseBranch,
		rootKey + "." + configurationCommitMessageKeyConstant:       defaults.CommitMessage,
		rootKey + "." + configurationPullRequestTitleKeyConstant:    defaults.PullRequestTitle,
		rootKey + "." + configurationPullRequestBodyKeyConstant:     defaults.PullRequestBody,
		rootKey + "." + configurationIssueTemplateKeyConstant:       defaults.IssueTemplatePath,
		rootKey + "." + configurationPullRequestTemplateKeyConstant: defaults.PullRequestTemplatePath,
		rootKey + "." + configurationCreateMissingKeyConstant:       defaults.CreateMissing,
		rootKey + "." + configurationDryRunKeyConstant:              defaults.DryRun,
		rootKey + "." + configurationRetryLimitKeyConstant:          defaults.ConflictRetryLimit,
	}
}

// sanitize trims textual settings and clamps the retry limit.
func (configuration Configuration) sanitize() Configuration {
	sanitized := configuration
	sanitized.Branch = strings.TrimSpace(configuration.Branch)
	sanitized.BaseBranch = strings.TrimSpace(configuration.BaseBranch)
	sanitized.IssueTemplatePath = strings.TrimSpace(configuration.IssueTemplatePath)
	sanitized.PullRequestTemplatePath = strings.TrimSpace(configuration.PullRequestTemplatePath)
	if sanitized.ConflictRetryLimit < 0 {
		sanitized.ConflictRetryLimit = 0
	}
	return sanitized
}

func (configuration Configuration) updateOptions() UpdateOptions {
	return UpdateOptions{
		BaseBranch:              configuration.BaseBranch,
		Branch:                  configuration.Branch,
		CommitMessage:           configuration.CommitMessage,
		PullRequestTitle:        configuration.PullRequestTitle,
		PullRequestBody:         configuration.PullRequestBody,
		IssueTemplatePath:       configuration.IssueTemplatePath,
		PullRequestTemplatePath: configuration.PullRequestTemplatePath,
		CreateMissing:           configuration.CreateMissing,
		DryRun:                  configuration.DryRun,
	}
}
