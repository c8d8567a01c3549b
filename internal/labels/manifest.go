package labels

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	colorPrefixConstant                 = "#"
	manifestReadErrorTemplateConstant   = "unable to read label manifest %s: %w"
	manifestParseErrorTemplateConstant  = "unable to parse label manifest %s: %w"
	manifestEmptyErrorTemplateConstant  = "label manifest %s defines no labels"
	labelNameMissingMessageConstant     = "label name must be provided"
	labelColorInvalidTemplateConstant   = "label %q color %q must be six hexadecimal digits"
	labelDuplicateErrorTemplateConstant = "label %q is defined more than once"
)

var (
	labelColorPattern   = regexp.MustCompile(`^[0-9a-f]{6}$`)
	errLabelNameMissing = errors.New(labelNameMissingMessageConstant)
)

// Manifest is the on-disk label definition document.
type Manifest struct {
	Labels []githubapi.Label `yaml:"labels"`
}

// DefaultLabels returns the label set applied when no manifest or configuration overrides it.
func DefaultLabels() []githubapi.Label {
	return []githubapi.Label{
		{Name: "blocking", Color: "b60205", Description: "Prevents production or dev due to perf, bug, build error, etc.."},
		{Name: "good first issue", Color: "7057ff", Description: "Issues that are suitable for first-time contributors."},
		{Name: "good first review", Color: "7057ff", Description: "PR's that are suitable for first-time contributors to review."},
		{Name: "feature", Color: "a2eeef", Description: "New addition or enhancement to existing solutions"},
		{Name: "has-reproduction", Color: "42f44e", Description: "❤ Has a reproduction in a codesandbox or single minimal repository"},
		{Name: "docs", Color: "c2e0c6", Description: "Focuses on documentation changes"},
	}
}

// LoadManifest reads and validates a YAML label manifest.
func LoadManifest(manifestPath string) ([]githubapi.Label, error) {
	contents, readError := os.ReadFile(manifestPath)
	if readError != nil {
		return nil, fmt.Errorf(manifestReadErrorTemplateConstant, manifestPath, readError)
	}

	var manifest Manifest
	if parseError := yaml.Unmarshal(contents, &manifest); parseError != nil {
		return nil, fmt.Errorf(manifestParseErrorTemplateConstant, manifestPath, parseError)
	}
	if len(manifest.Labels) == 0 {
		return nil, fmt.Errorf(manifestEmptyErrorTemplateConstant, manifestPath)
	}
	return NormalizeLabels(manifest.Labels)
}

// NormalizeLabels trims names, lowercases colors without a leading '#', and
// rejects invalid or duplicate definitions. Duplicates compare case-insensitively.
func NormalizeLabels(rawLabels []githubapi.Label) ([]githubapi.Label, error) {
	normalized := make([]githubapi.Label, 0, len(rawLabels))
	seen := make(map[string]struct{}, len(rawLabels))
	for _, rawLabel := range rawLabels {
		label, labelError := normalizeLabel(rawLabel)
		if labelError != nil {
			return nil, labelError
		}
		key := strings.ToLower(label.Name)
		if _, duplicate := seen[key]; duplicate {
			return nil, fmt.Errorf(labelDuplicateErrorTemplateConstant, label.Name)
		}
		seen[key] = struct{}{}
		normalized = append(normalized, label)
	}
	return normalized, nil
}

func normalizeLabel(rawLabel githubapi.Label) (githubapi.Label, error) {
	name := strings.TrimSpace(rawLabel.Name)
	if len(name) == 0 {
		return githubapi.Label{}, errLabelNameMissing
	}
	color := normalizeColor(rawLabel.Color)
	if !labelColorPattern.MatchString(color) {
		return githubapi.Label{}, fmt.Errorf(labelColorInvalidTemplateConstant, name, rawLabel.Color)
	}
	return githubapi.Label{Name: name, Color: color, Description: strings.TrimSpace(rawLabel.Description)}, nil
}

func normalizeColor(rawColor string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rawColor), colorPrefixConstant))
}
