package flags

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestFormatChoiceUsage(t *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "DefaultMiddleChoice",
			defaultChoice:  "squash",
			choices:        []string{"merge", "squash", "rebase"},
			description:    "Merge method.",
			expectedOutput: "`<merge|SQUASH|rebase>` Merge method.",
		},
		{
			name:           "EmptyDescription",
			defaultChoice:  "user",
			choices:        []string{"user", "org"},
			description:    "",
			expectedOutput: "`<USER|org>`",
		},
		{
			name:           "DuplicateChoicesIgnored",
			defaultChoice:  "org",
			choices:        []string{"org", "ORG", "user"},
			description:    "Owner kind.",
			expectedOutput: "`<ORG|user>` Owner kind.",
		},
		{
			name:           "WhitespaceTrimmed",
			defaultChoice:  "rebase",
			choices:        []string{" merge ", " rebase "},
			description:    "Pick one.",
			expectedOutput: "`<merge|REBASE>` Pick one.",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			actual := FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description)
			require.Equal(t, testCase.expectedOutput, actual)
		})
	}
}

func TestAddChoiceFlag(t *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		expectedValue string
		expectError   bool
	}{
		{name: "default_retained", arguments: nil, expectedValue: "squash"},
		{name: "case_insensitive", arguments: []string{"--method", " Rebase "}, expectedValue: "rebase"},
		{name: "unknown_rejected", arguments: []string{"--method", "fast-forward"}, expectError: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			flagSet := pflag.NewFlagSet(testCase.name, pflag.ContinueOnError)
			var method string
			AddChoiceFlag(flagSet, &method, "method", "squash", []string{"merge", "squash", "rebase"}, "Merge method.")

			parseError := flagSet.Parse(testCase.arguments)
			if testCase.expectError {
				require.Error(t, parseError)
				return
			}
			require.NoError(t, parseError)
			require.Equal(t, testCase.expectedValue, method)
			require.Equal(t, "choice", flagSet.Lookup("method").Value.Type())
		})
	}
}
