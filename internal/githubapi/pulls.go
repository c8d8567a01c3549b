package githubapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	pullRequestsPathConstant        = "/pulls"
	pullRequestMergePathTemplate    = "/pulls/%d/merge"
	stateQueryParameterName         = "state"
	operationListPullRequests       = gitdata.OperationName("ListPullRequests")
	operationCreatePullRequest      = gitdata.OperationName("CreatePullRequest")
	operationMergePullRequest       = gitdata.OperationName("MergePullRequest")
	operationCheckPullRequestMerged = gitdata.OperationName("CheckPullRequestMerged")
)

// PullRequestState filters pull request listings.
type PullRequestState string

// Pull request states accepted by the listing endpoint.
const (
	PullRequestStateOpen   PullRequestState = PullRequestState("open")
	PullRequestStateClosed PullRequestState = PullRequestState("closed")
	PullRequestStateAll    PullRequestState = PullRequestState("all")
)

// MergeMethod selects how a pull request is merged.
type MergeMethod string

// Supported merge methods.
const (
	MergeMethodMerge  MergeMethod = MergeMethod("merge")
	MergeMethodSquash MergeMethod = MergeMethod("squash")
	MergeMethodRebase MergeMethod = MergeMethod("rebase")
)

// PullRequest summarizes a pull request.
type PullRequest struct {
	Number     int
	Title      string
	State      string
	HeadBranch string
	BaseBranch string
	URL        string
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// MergeResult reports the outcome of a merge request.
type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

type branchReferencePayload struct {
	Ref string `json:"ref"`
}

type pullRequestPayload struct {
	Number  int                    `json:"number"`
	Title   string                 `json:"title"`
	State   string                 `json:"state"`
	HTMLURL string                 `json:"html_url"`
	Head    branchReferencePayload `json:"head"`
	Base    branchReferencePayload `json:"base"`
}

type mergePayload struct {
	MergeMethod string `json:"merge_method"`
}

// ListPullRequests returns pull requests in the given state.
func (client *Client) ListPullRequests(executionContext context.Context, repository gitdata.RepositoryIdentifier, state PullRequestState) ([]PullRequest, error) {
	if len(state) == 0 {
		state = PullRequestStateOpen
	}
	request := apiRequest{
		operation: operationListPullRequests,
		method:    http.MethodGet,
		path:      repositoryPath(repository, pullRequestsPathConstant),
		query:     url.Values{stateQueryParameterName: []string{string(state)}},
	}
	payloads, listError := listAll[pullRequestPayload](executionContext, client, request)
	if listError != nil {
		return nil, listError
	}

	pullRequests := make([]PullRequest, 0, len(payloads))
	for _, payload := range payloads {
		pullRequests = append(pullRequests, payload.toPullRequest())
	}
	return pullRequests, nil
}

// CreatePullRequest opens a pull request. GitHub answers 422 when one already
// exists for the head branch, which is reported as gitdata.ErrConflict.
func (client *Client) CreatePullRequest(executionContext context.Context, repository gitdata.RepositoryIdentifier, pullRequest NewPullRequest) (PullRequest, error) {
	var payload pullRequestPayload
	request := apiRequest{
		operation:               operationCreatePullRequest,
		method:                  http.MethodPost,
		path:                    repositoryPath(repository, pullRequestsPathConstant),
		body:                    pullRequest,
		conflictOnUnprocessable: true,
	}
	if _, _, requestError := client.execute(executionContext, request, &payload); requestError != nil {
		return PullRequest{}, requestError
	}
	return payload.toPullRequest(), nil
}

// MergePullRequest merges a pull request. A pull request that cannot be merged
// (405) or whose head moved (409) yields gitdata.ErrConflict.
func (client *Client) MergePullRequest(executionContext context.Context, repository gitdata.RepositoryIdentifier, number int, method MergeMethod) (MergeResult, error) {
	if len(method) == 0 {
		method = MergeMethodSquash
	}
	var result MergeResult
	request := apiRequest{
		operation:        operationMergePullRequest,
		method:           http.MethodPut,
		path:             repositoryPath(repository, pullRequestMergePathTemplate, number),
		body:             mergePayload{MergeMethod: string(method)},
		conflictStatuses: []int{http.StatusMethodNotAllowed},
	}
	if _, _, requestError := client.execute(executionContext, request, &result); requestError != nil {
		return MergeResult{}, requestError
	}
	return result, nil
}

// IsPullRequestMerged reports whether the pull request has been merged.
func (client *Client) IsPullRequestMerged(executionContext context.Context, repository gitdata.RepositoryIdentifier, number int) (bool, error) {
	request := apiRequest{
		operation:        operationCheckPullRequestMerged,
		method:           http.MethodGet,
		path:             repositoryPath(repository, pullRequestMergePathTemplate, number),
		acceptedStatuses: []int{http.StatusNotFound},
	}
	_, statusCode, requestError := client.execute(executionContext, request, nil)
	if requestError != nil {
		return false, requestError
	}
	return statusCode == http.StatusNoContent, nil
}

func (payload pullRequestPayload) toPullRequest() PullRequest {
	return PullRequest{
		Number:     payload.Number,
		Title:      payload.Title,
		State:      payload.State,
		HeadBranch: payload.Head.Ref,
		BaseBranch: payload.Base.Ref,
		URL:        payload.HTMLURL,
	}
}
