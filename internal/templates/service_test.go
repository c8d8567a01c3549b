package templates_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitfleet/internal/commitflow"
	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/gitdata/gitdatatest"
	"github.com/temirov/gitfleet/internal/githubapi"
	"github.com/temirov/gitfleet/internal/templates"
)

const baseBranchName = "main"

var testRepository = githubapi.Repository{
	Identifier:    gitdata.RepositoryIdentifier{Owner: "octo", Name: "widgets"},
	DefaultBranch: baseBranchName,
}

type pullRequestRecordingService struct {
	*gitdatatest.Service
	requested        []githubapi.NewPullRequest
	pullRequestError error
}

func (service *pullRequestRecordingService) CreatePullRequest(_ context.Context, _ gitdata.RepositoryIdentifier, pullRequest githubapi.NewPullRequest) (githubapi.PullRequest, error) {
	service.requested = append(service.requested, pullRequest)
	if service.pullRequestError != nil {
		return githubapi.PullRequest{}, service.pullRequestError
	}
	return githubapi.PullRequest{Number: 42, Title: pullRequest.Title, HeadBranch: pullRequest.Head, BaseBranch: pullRequest.Base}, nil
}

func newRecordingService(files map[string]string) *pullRequestRecordingService {
	backing := gitdatatest.NewService()
	backing.Seed(testRepository.Identifier, baseBranchName, files)
	return &pullRequestRecordingService{Service: backing}
}

func newTemplateService(t *testing.T, client templates.Client) *templates.Service {
	t.Helper()
	service, serviceError := templates.NewService(nil, client, commitflow.Options{})
	require.NoError(t, serviceError)
	return service
}

func TestServiceUpdateCommitsBothTemplatesAtomically(t *testing.T) {
	client := newRecordingService(map[string]string{
		"README.md":                              "readme",
		templates.DefaultIssueTemplatePath:       legacyIssueTemplate,
		templates.DefaultPullRequestTemplatePath: legacyPullTemplate,
	})
	service := newTemplateService(t, client)

	outcome, updateError := service.Update(context.Background(), testRepository, templates.UpdateOptions{})
	require.NoError(t, updateError)
	require.Equal(t, []string{templates.DefaultIssueTemplatePath, templates.DefaultPullRequestTemplatePath}, outcome.ChangedPaths)
	require.Equal(t, 42, outcome.PullRequest.Number)

	branchTip, exists := client.BranchTip(testRepository.Identifier, templates.DefaultBranchName)
	require.True(t, exists)
	require.Equal(t, outcome.Commit, branchTip)

	commit, found := client.CommitObject(testRepository.Identifier, branchTip)
	require.True(t, found)
	require.Equal(t, templates.DefaultCommitMessage, commit.Message)
	require.Len(t, commit.Parents, 1)

	files := client.Files(testRepository.Identifier, branchTip)
	require.Equal(t, "readme", files["README.md"])
	require.Contains(t, files[templates.DefaultIssueTemplatePath], "- [ ] docs\n- [ ] blocking")
	require.NotContains(t, files[templates.DefaultPullRequestTemplatePath], "has-reproduction")

	baseTip, _ := client.BranchTip(testRepository.Identifier, baseBranchName)
	require.Equal(t, legacyIssueTemplate, client.Files(testRepository.Identifier, baseTip)[templates.DefaultIssueTemplatePath])

	require.Len(t, client.requested, 1)
	require.Equal(t, githubapi.NewPullRequest{
		Title: templates.DefaultPullRequestTitle,
		Body:  templates.DefaultPullRequestBody,
		Head:  templates.DefaultBranchName,
		Base:  baseBranchName,
	}, client.requested[0])
}

func TestServiceUpdateOutcomes(t *testing.T) {
	testCases := []struct {
		name               string
		files              map[string]string
		options            templates.UpdateOptions
		pullRequestError   error
		expectedError      error
		expectedPaths      []string
		expectedCommits    int
		expectPullExisted  bool
		expectMissingError bool
	}{
		{
			name: "current templates are left alone",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       templates.DefaultIssueTemplate,
				templates.DefaultPullRequestTemplatePath: templates.DefaultPullRequestTemplate,
			},
			expectedError: templates.ErrTemplatesCurrent,
		},
		{
			name: "only the drifted template is committed",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       templates.DefaultIssueTemplate,
				templates.DefaultPullRequestTemplatePath: legacyPullTemplate,
			},
			expectedPaths:   []string{templates.DefaultPullRequestTemplatePath},
			expectedCommits: 1,
		},
		{
			name:               "missing template fails without creation",
			files:              map[string]string{templates.DefaultPullRequestTemplatePath: legacyPullTemplate},
			expectMissingError: true,
		},
		{
			name:            "missing template is created on request",
			files:           map[string]string{templates.DefaultPullRequestTemplatePath: legacyPullTemplate},
			options:         templates.UpdateOptions{CreateMissing: true},
			expectedPaths:   []string{templates.DefaultIssueTemplatePath, templates.DefaultPullRequestTemplatePath},
			expectedCommits: 1,
		},
		{
			name: "dry run commits nothing",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       legacyIssueTemplate,
				templates.DefaultPullRequestTemplatePath: legacyPullTemplate,
			},
			options:       templates.UpdateOptions{DryRun: true},
			expectedPaths: []string{templates.DefaultIssueTemplatePath, templates.DefaultPullRequestTemplatePath},
		},
		{
			name: "existing pull request is tolerated",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       legacyIssueTemplate,
				templates.DefaultPullRequestTemplatePath: legacyPullTemplate,
			},
			pullRequestError:  gitdata.NewOperationError(gitdata.OperationName("CreatePullRequest"), gitdata.ErrConflict, errors.New("already exists")),
			expectedPaths:     []string{templates.DefaultIssueTemplatePath, templates.DefaultPullRequestTemplatePath},
			expectedCommits:   1,
			expectPullExisted: true,
		},
		{
			name: "transform failure",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       "no markers here\n",
				templates.DefaultPullRequestTemplatePath: legacyPullTemplate,
			},
			expectedError: templates.ErrIssueMarkerMissing,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			client := newRecordingService(testCase.files)
			client.pullRequestError = testCase.pullRequestError
			service := newTemplateService(t, client)

			outcome, updateError := service.Update(context.Background(), testRepository, testCase.options)
			switch {
			case testCase.expectedError != nil:
				require.ErrorIs(t, updateError, testCase.expectedError)
			case testCase.expectMissingError:
				var missingError templates.TemplateMissingError
				require.ErrorAs(t, updateError, &missingError)
				require.Equal(t, templates.DefaultIssueTemplatePath, missingError.Path)
			default:
				require.NoError(t, updateError)
				require.Equal(t, testCase.expectedPaths, outcome.ChangedPaths)
				require.Equal(t, testCase.expectPullExisted, outcome.PullRequestExisted)
			}

			require.Equal(t, testCase.expectedCommits, client.CallCount(gitdata.OperationCreateCommit))
			_, branchExists := client.BranchTip(testRepository.Identifier, templates.DefaultBranchName)
			require.Equal(t, testCase.expectedCommits > 0, branchExists)
		})
	}
}

func TestServiceUpdateCreatesMissingTemplateFromDefault(t *testing.T) {
	client := newRecordingService(map[string]string{templates.DefaultPullRequestTemplatePath: legacyPullTemplate})
	service := newTemplateService(t, client)

	outcome, updateError := service.Update(context.Background(), testRepository, templates.UpdateOptions{CreateMissing: true})
	require.NoError(t, updateError)
	require.Equal(t, []string{templates.DefaultIssueTemplatePath, templates.DefaultPullRequestTemplatePath}, outcome.ChangedPaths)

	files := client.Files(testRepository.Identifier, outcome.Commit)
	require.Equal(t, templates.DefaultIssueTemplate, files[templates.DefaultIssueTemplatePath])
	require.NotContains(t, files[templates.DefaultPullRequestTemplatePath], "has-reproduction")
}

type truncatedListingService struct {
	*pullRequestRecordingService
	hiddenPath string
}

func (service truncatedListingService) GetTree(executionContext context.Context, repository gitdata.RepositoryIdentifier, tree gitdata.Hash, recursive bool) (gitdata.Tree, error) {
	listing, listingError := service.Service.GetTree(executionContext, repository, tree, recursive)
	if listingError != nil || !recursive {
		return listing, listingError
	}
	visible := make([]gitdata.TreeEntry, 0, len(listing.Entries))
	for _, entry := range listing.Entries {
		if entry.Path != service.hiddenPath {
			visible = append(visible, entry)
		}
	}
	listing.Entries = visible
	listing.Truncated = true
	return listing, nil
}

func TestServiceUpdateKeepsTemplateHiddenByTruncatedListing(t *testing.T) {
	const customIssueTemplate = "CUSTOM ISSUE TEMPLATE\n- [ ] docs\n- [ ] blocking\n"
	recording := newRecordingService(map[string]string{
		templates.DefaultIssueTemplatePath:       customIssueTemplate,
		templates.DefaultPullRequestTemplatePath: legacyPullTemplate,
	})
	client := truncatedListingService{pullRequestRecordingService: recording, hiddenPath: templates.DefaultIssueTemplatePath}
	service := newTemplateService(t, client)

	outcome, updateError := service.Update(context.Background(), testRepository, templates.UpdateOptions{CreateMissing: true})
	require.NoError(t, updateError)
	require.Equal(t, []string{templates.DefaultPullRequestTemplatePath}, outcome.ChangedPaths)

	files := recording.Files(testRepository.Identifier, outcome.Commit)
	require.Equal(t, customIssueTemplate, files[templates.DefaultIssueTemplatePath])
}

func TestServiceTaskDetails(t *testing.T) {
	testCases := []struct {
		name           string
		files          map[string]string
		options        templates.UpdateOptions
		expectedDetail string
		expectedError  error
	}{
		{
			name: "opened",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       legacyIssueTemplate,
				templates.DefaultPullRequestTemplatePath: legacyPullTemplate,
			},
			expectedDetail: "opened pull request #42",
		},
		{
			name: "dry run",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       legacyIssueTemplate,
				templates.DefaultPullRequestTemplatePath: templates.DefaultPullRequestTemplate,
			},
			options:        templates.UpdateOptions{DryRun: true},
			expectedDetail: fmt.Sprintf("would update %s", templates.DefaultIssueTemplatePath),
		},
		{
			name: "current",
			files: map[string]string{
				templates.DefaultIssueTemplatePath:       templates.DefaultIssueTemplate,
				templates.DefaultPullRequestTemplatePath: templates.DefaultPullRequestTemplate,
			},
			expectedDetail: "templates already up to date",
			expectedError:  fleet.ErrRepositorySkipped,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			service := newTemplateService(t, newRecordingService(testCase.files))
			detail, taskError := service.Task(testCase.options)(context.Background(), testRepository)
			if testCase.expectedError != nil {
				require.ErrorIs(t, taskError, testCase.expectedError)
			} else {
				require.NoError(t, taskError)
			}
			require.Equal(t, testCase.expectedDetail, detail)
		})
	}
}

func TestNewServiceRequiresClient(t *testing.T) {
	service, serviceError := templates.NewService(nil, nil, commitflow.Options{})
	require.Error(t, serviceError)
	require.Nil(t, service)
}
