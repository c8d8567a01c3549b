package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	pathutils "github.com/temirov/gitfleet/internal/utils/path"
)

const (
	configurationKeySeparatorConstant               = "."
	environmentKeySeparatorConstant                 = "_"
	listValueSeparatorConstant                      = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration %s: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
	configurationFileMissingTemplateConstant        = "configuration file %s does not exist"
	searchedLocationsLabelConstant                  = "search paths"
)

// ConfigurationFileMissingError reports an explicitly requested configuration
// file that does not exist. Missing files on the search paths are not errors.
type ConfigurationFileMissingError struct {
	Path string
}

// Error describes the missing file.
func (missingError ConfigurationFileMissingError) Error() string {
	return fmt.Sprintf(configurationFileMissingTemplateConstant, missingError.Path)
}

// ConfigurationLoader layers configuration sources, lowest precedence first:
// defaults, embedded configuration, the configuration file, and environment
// variables named PREFIX_SECTION_KEY.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	homeExpander              *pathutils.HomeExpander
	embeddedConfiguration     []byte
	embeddedConfigurationType string
}

// LoadedConfiguration describes where the resolved values came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
	// EnvironmentOverrides lists the configuration keys set through the environment.
	EnvironmentOverrides []string
}

// NewConfigurationLoader creates a loader for configurationName files of
// configurationType found on searchPaths. Search paths may start with ~;
// empty and repeated paths are ignored.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	loader := &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: strings.ToUpper(strings.TrimSpace(environmentPrefix)),
		homeExpander:      pathutils.NewHomeExpander(),
	}
	seenPaths := make(map[string]struct{}, len(searchPaths))
	for _, searchPath := range searchPaths {
		expandedPath := loader.homeExpander.Expand(strings.TrimSpace(searchPath))
		if len(expandedPath) == 0 {
			continue
		}
		if _, seen := seenPaths[expandedPath]; seen {
			continue
		}
		seenPaths[expandedPath] = struct{}{}
		loader.searchPaths = append(loader.searchPaths, expandedPath)
	}
	return loader
}

// SearchPaths returns the directories searched for a configuration file.
func (loader *ConfigurationLoader) SearchPaths() []string {
	return append([]string(nil), loader.searchPaths...)
}

// SetEmbeddedConfiguration stores configuration merged beneath any file.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}
	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)
	loader.embeddedConfiguration = nil
	if len(configurationData) > 0 {
		loader.embeddedConfiguration = append([]byte(nil), configurationData...)
	}
}

// LoadConfiguration decodes every layer into targetConfiguration. An empty
// configurationFilePath searches the loader's search paths. Comma separated
// values decode into string slices and textual durations into time.Duration.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}
	if mergeError := loader.mergeEmbedded(viperInstance); mergeError != nil {
		return LoadedConfiguration{}, mergeError
	}
	if readError := loader.mergeFile(viperInstance, configurationFilePath); readError != nil {
		return LoadedConfiguration{}, readError
	}
	environmentOverrides := loader.bindEnvironment(viperInstance)

	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, viper.DecodeHook(configurationDecodeHook())); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{
		ConfigFileUsed:       viperInstance.ConfigFileUsed(),
		EnvironmentOverrides: environmentOverrides,
	}, nil
}

func (loader *ConfigurationLoader) mergeEmbedded(viperInstance *viper.Viper) error {
	if len(loader.embeddedConfiguration) == 0 {
		return nil
	}
	if len(loader.embeddedConfigurationType) > 0 {
		viperInstance.SetConfigType(loader.embeddedConfigurationType)
		defer viperInstance.SetConfigType(loader.configurationType)
	}
	if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
		return fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
	}
	return nil
}

// mergeFile merges the explicit configuration file, or the first file found
// on the search paths.
func (loader *ConfigurationLoader) mergeFile(viperInstance *viper.Viper, configurationFilePath string) error {
	explicitPath := loader.homeExpander.Expand(strings.TrimSpace(configurationFilePath))
	if len(explicitPath) > 0 {
		if _, statError := os.Stat(explicitPath); errors.Is(statError, fs.ErrNotExist) {
			return ConfigurationFileMissingError{Path: explicitPath}
		}
		viperInstance.SetConfigFile(explicitPath)
	} else {
		for _, searchPath := range loader.searchPaths {
			viperInstance.AddConfigPath(searchPath)
		}
	}

	readError := viperInstance.MergeInConfig()
	if readError == nil {
		return nil
	}
	var notFoundError viper.ConfigFileNotFoundError
	if errors.As(readError, &notFoundError) {
		return nil
	}
	source := explicitPath
	if len(source) == 0 {
		source = searchedLocationsLabelConstant
	}
	return fmt.Errorf(configurationReadErrorTemplateConstant, source, readError)
}

// bindEnvironment binds every known key to PREFIX_SECTION_KEY and returns the
// keys whose variables are set, sorted.
func (loader *ConfigurationLoader) bindEnvironment(viperInstance *viper.Viper) []string {
	var overriddenKeys []string
	for _, configurationKey := range viperInstance.AllKeys() {
		environmentName := loader.environmentName(configurationKey)
		_ = viperInstance.BindEnv(configurationKey, environmentName)
		if _, present := os.LookupEnv(environmentName); present {
			overriddenKeys = append(overriddenKeys, configurationKey)
		}
	}
	sort.Strings(overriddenKeys)
	return overriddenKeys
}

func (loader *ConfigurationLoader) environmentName(configurationKey string) string {
	name := strings.ToUpper(strings.ReplaceAll(configurationKey, configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	if len(loader.environmentPrefix) == 0 {
		return name
	}
	return loader.environmentPrefix + environmentKeySeparatorConstant + name
}

func configurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}
