package pullrequests

import (
	"fmt"
	"strings"

	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	configurationPrefixKeyConstant    = "title_prefix"
	configurationMethodKeyConstant    = "method"
	configurationDryRunKeyConstant    = "dry_run"
	unsupportedMethodTemplateConstant = "unsupported merge method %q"
)

// Configuration stores bot pull request merge settings.
type Configuration struct {
	TitlePrefix string `mapstructure:"title_prefix"`
	Method      string `mapstructure:"method"`
	DryRun      bool   `mapstructure:"dry_run"`
}

// DefaultConfiguration provides baseline merge settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		TitlePrefix: DefaultTitlePrefix,
		Method:      string(githubapi.MergeMethodSquash),
	}
}

// DefaultConfigurationValues produces Viper defaults under rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		rootKey + "." + configurationPrefixKeyConstant: defaults.TitlePrefix,
		rootKey + "." + configurationMethodKeyConstant: defaults.Method,
		rootKey + "." + configurationDryRunKeyConstant: defaults.DryRun,
	}
}

// ParseMergeMethod validates a textual merge method; empty selects squash.
func ParseMergeMethod(methodValue string) (githubapi.MergeMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(methodValue))
	switch githubapi.MergeMethod(normalized) {
	case "":
		return githubapi.MergeMethodSquash, nil
	case githubapi.MergeMethodMerge, githubapi.MergeMethodSquash, githubapi.MergeMethodRebase:
		return githubapi.MergeMethod(normalized), nil
	default:
		return "", fmt.Errorf(unsupportedMethodTemplateConstant, methodValue)
	}
}
