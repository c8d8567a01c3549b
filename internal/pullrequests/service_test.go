package pullrequests_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/githubapi"
	"github.com/temirov/gitfleet/internal/pullrequests"
)

var testRepositoryIdentifier = gitdata.RepositoryIdentifier{Owner: "octo", Name: "widgets"}

type stubPullRequestClient struct {
	open          []githubapi.PullRequest
	listError     error
	mergeResult   githubapi.MergeResult
	mergeError    error
	merged        bool
	mergedNumbers []int
	mergeMethods  []githubapi.MergeMethod
}

func (client *stubPullRequestClient) ListPullRequests(_ context.Context, _ gitdata.RepositoryIdentifier, state githubapi.PullRequestState) ([]githubapi.PullRequest, error) {
	if state != githubapi.PullRequestStateOpen {
		return nil, errors.New("unexpected state")
	}
	return client.open, client.listError
}

func (client *stubPullRequestClient) MergePullRequest(_ context.Context, _ gitdata.RepositoryIdentifier, number int, method githubapi.MergeMethod) (githubapi.MergeResult, error) {
	client.mergedNumbers = append(client.mergedNumbers, number)
	client.mergeMethods = append(client.mergeMethods, method)
	return client.mergeResult, client.mergeError
}

func (client *stubPullRequestClient) IsPullRequestMerged(context.Context, gitdata.RepositoryIdentifier, int) (bool, error) {
	return client.merged, nil
}

func botPullRequests() []githubapi.PullRequest {
	return []githubapi.PullRequest{
		{Number: 3, Title: "Fix typo"},
		{Number: 7, Title: "[gitfleet-bot] Update the Issue/PR Templates with docs label"},
		{Number: 9, Title: "[gitfleet-bot] Another change"},
	}
}

func TestMergeBotPullRequest(t *testing.T) {
	conflictError := gitdata.NewOperationError(gitdata.OperationName("MergePullRequest"), gitdata.ErrConflict, errors.New("not mergeable"))

	testCases := []struct {
		name           string
		client         *stubPullRequestClient
		options        pullrequests.MergeOptions
		expectedError  error
		expectFailure  bool
		expectedMerged []int
		expectedMethod githubapi.MergeMethod
	}{
		{
			name:           "merges first bot pull request with squash",
			client:         &stubPullRequestClient{open: botPullRequests(), mergeResult: githubapi.MergeResult{Merged: true, SHA: "abcdef1234567"}, merged: true},
			expectedMerged: []int{7},
			expectedMethod: githubapi.MergeMethodSquash,
		},
		{
			name:           "custom prefix and method",
			client:         &stubPullRequestClient{open: botPullRequests(), mergeResult: githubapi.MergeResult{Merged: true}, merged: true},
			options:        pullrequests.MergeOptions{TitlePrefix: "Fix", Method: githubapi.MergeMethodRebase},
			expectedMerged: []int{3},
			expectedMethod: githubapi.MergeMethodRebase,
		},
		{
			name:          "no bot pull request",
			client:        &stubPullRequestClient{open: []githubapi.PullRequest{{Number: 3, Title: "Fix typo"}}},
			expectedError: pullrequests.ErrPullRequestNotPresent,
		},
		{
			name:           "merge conflict",
			client:         &stubPullRequestClient{open: botPullRequests(), mergeError: conflictError},
			expectedError:  gitdata.ErrConflict,
			expectedMerged: []int{7},
			expectedMethod: githubapi.MergeMethodSquash,
		},
		{
			name:           "merge not performed",
			client:         &stubPullRequestClient{open: botPullRequests(), mergeResult: githubapi.MergeResult{Merged: false, Message: "blocked"}},
			expectFailure:  true,
			expectedMerged: []int{7},
			expectedMethod: githubapi.MergeMethodSquash,
		},
		{
			name:           "merge not confirmed",
			client:         &stubPullRequestClient{open: botPullRequests(), mergeResult: githubapi.MergeResult{Merged: true}, merged: false},
			expectFailure:  true,
			expectedMerged: []int{7},
			expectedMethod: githubapi.MergeMethodSquash,
		},
		{
			name:    "dry run",
			client:  &stubPullRequestClient{open: botPullRequests()},
			options: pullrequests.MergeOptions{DryRun: true},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			service, serviceError := pullrequests.NewService(nil, testCase.client)
			require.NoError(t, serviceError)

			_, mergeError := service.MergeBotPullRequest(context.Background(), testRepositoryIdentifier, testCase.options)
			switch {
			case testCase.expectedError != nil:
				require.ErrorIs(t, mergeError, testCase.expectedError)
			case testCase.expectFailure:
				require.Error(t, mergeError)
			default:
				require.NoError(t, mergeError)
			}

			if len(testCase.expectedMerged) == 0 {
				require.Empty(t, testCase.client.mergedNumbers)
				return
			}
			require.Equal(t, testCase.expectedMerged, testCase.client.mergedNumbers)
			require.Equal(t, []githubapi.MergeMethod{testCase.expectedMethod}, testCase.client.mergeMethods)
		})
	}
}

func TestMergeTaskDetails(t *testing.T) {
	client := &stubPullRequestClient{open: botPullRequests(), mergeResult: githubapi.MergeResult{Merged: true, SHA: "abcdef1234567"}, merged: true}
	service, serviceError := pullrequests.NewService(nil, client)
	require.NoError(t, serviceError)

	repository := githubapi.Repository{Identifier: testRepositoryIdentifier}
	detail, taskError := service.Task(pullrequests.MergeOptions{})(context.Background(), repository)
	require.NoError(t, taskError)
	require.Equal(t, "merged #7 (abcdef1)", detail)

	client.open = nil
	detail, taskError = service.Task(pullrequests.MergeOptions{})(context.Background(), repository)
	require.ErrorIs(t, taskError, fleet.ErrRepositorySkipped)
	require.Equal(t, "not present", detail)
}

func TestParseMergeMethod(t *testing.T) {
	testCases := []struct {
		value          string
		expectedMethod githubapi.MergeMethod
		expectError    bool
	}{
		{value: "", expectedMethod: githubapi.MergeMethodSquash},
		{value: " Rebase ", expectedMethod: githubapi.MergeMethodRebase},
		{value: "merge", expectedMethod: githubapi.MergeMethodMerge},
		{value: "octopus", expectError: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.value, func(t *testing.T) {
			method, parseError := pullrequests.ParseMergeMethod(testCase.value)
			if testCase.expectError {
				require.Error(t, parseError)
				return
			}
			require.NoError(t, parseError)
			require.Equal(t, testCase.expectedMethod, method)
		})
	}
}
