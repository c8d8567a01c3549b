package repos_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitfleet/cmd/cli/repos"
	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/githubapi"
)

const userRepositoriesPayloadConstant = `[
	{"name": "alpha", "owner": {"login": "octo"}, "default_branch": "main"},
	{"name": "legacy", "owner": {"login": "octo"}, "default_branch": "master", "archived": true},
	{"name": "fork", "owner": {"login": "octo"}, "default_branch": "main", "fork": true}
]`

func TestListCommandRendersSelectedRepositories(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/users/octo/repos" {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(userRepositoriesPayloadConstant))
	}))
	testInstance.Cleanup(server.Close)

	client, clientError := githubapi.NewClient(nil, githubapi.Configuration{BaseURL: server.URL, Token: "test-token"}, server.Client())
	require.NoError(testInstance, clientError)

	testCases := []struct {
		name             string
		includeArchived  bool
		expectedLines    []string
		unexpectedOutput string
	}{
		{
			name:             "archived_hidden",
			expectedLines:    []string{"alpha", "fork", "2 repositories"},
			unexpectedOutput: "legacy",
		},
		{
			name:            "archived_included",
			includeArchived: true,
			expectedLines:   []string{"alpha", "legacy", "fork", "3 repositories"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			var output bytes.Buffer
			builder := repos.CommandGroupBuilder{
				SessionProvider: func(context.Context) (fleet.Session, error) {
					return fleet.Session{
						Client: client,
						Selection: fleet.SelectionOptions{
							OwnerType:       githubapi.UserOwnerType,
							Owner:           "octo",
							IncludeArchived: testCase.includeArchived,
						},
						Output: &output,
					}, nil
				},
			}
			command, buildError := builder.Build()
			require.NoError(subTest, buildError)
			command.SetContext(context.Background())
			command.SetArgs([]string{"list"})
			command.SilenceErrors = true
			command.SilenceUsage = true

			require.NoError(subTest, command.Execute())
			for _, expectedLine := range testCase.expectedLines {
				require.Contains(subTest, output.String(), expectedLine)
			}
			if len(testCase.unexpectedOutput) > 0 {
				require.NotContains(subTest, output.String(), testCase.unexpectedOutput)
			}
		})
	}
}

func TestListCommandRequiresSessionProvider(testInstance *testing.T) {
	builder := repos.CommandGroupBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetContext(context.Background())
	command.SetArgs([]string{"list"})
	command.SilenceErrors = true
	command.SilenceUsage = true

	require.ErrorIs(testInstance, command.Execute(), fleet.ErrSessionProviderMissing)
}
