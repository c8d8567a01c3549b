package labels

import (
	"strings"

	"github.com/temirov/gitfleet/internal/githubapi"
	pathutils "github.com/temirov/gitfleet/internal/utils/path"
)

const (
	configurationManifestKeyConstant = "manifest"
	configurationDryRunKeyConstant   = "dry_run"
)

var labelsConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// Configuration stores label synchronization settings.
type Configuration struct {
	ManifestPath string            `mapstructure:"manifest"`
	DryRun       bool              `mapstructure:"dry_run"`
	Labels       []githubapi.Label `mapstructure:"labels"`
}

// DefaultConfiguration provides baseline label synchronization settings.
func DefaultConfiguration() Configuration {
	return Configuration{}
}

// DefaultConfigurationValues produces Viper defaults under rootKey. The label
// list itself has no default key so a configured list replaces DefaultLabels.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		rootKey + "." + configurationManifestKeyConstant: defaults.ManifestPath,
		rootKey + "." + configurationDryRunKeyConstant:   defaults.DryRun,
	}
}

// sanitize trims values and expands a home-relative manifest path.
func (configuration Configuration) sanitize() Configuration {
	sanitized := configuration
	sanitized.ManifestPath = labelsConfigurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.ManifestPath))
	return sanitized
}
