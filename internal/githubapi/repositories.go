package githubapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	eventsPathConstant             = "/events"
	singleEventPageSizeConstant    = "1"
	repositoryTypeQueryParameter   = "type"
	repositoryTypeAllValueConstant = "all"
	operationListRepositories      = gitdata.OperationName("ListRepositories")
	operationLatestRepositoryEvent = gitdata.OperationName("LatestRepositoryEvent")
)

// Repository summarizes a hosted repository.
type Repository struct {
	Identifier    gitdata.RepositoryIdentifier
	DefaultBranch string
	Archived      bool
	Fork          bool
}

type ownerPayload struct {
	Login string `json:"login"`
}

type repositoryPayload struct {
	Name          string       `json:"name"`
	Owner         ownerPayload `json:"owner"`
	DefaultBranch string       `json:"default_branch"`
	Archived      bool         `json:"archived"`
	Fork          bool         `json:"fork"`
}

type eventPayload struct {
	CreatedAt time.Time `json:"created_at"`
}

// ListRepositories returns every repository owned by the user or organization.
func (client *Client) ListRepositories(executionContext context.Context, ownerType OwnerType, owner string) ([]Repository, error) {
	request := apiRequest{
		operation: operationListRepositories,
		method:    http.MethodGet,
		path:      ownerType.repositoriesPath(owner),
		query:     url.Values{repositoryTypeQueryParameter: []string{repositoryTypeAllValueConstant}},
	}
	payloads, listError := listAll[repositoryPayload](executionContext, client, request)
	if listError != nil {
		return nil, listError
	}

	repositories := make([]Repository, 0, len(payloads))
	for _, payload := range payloads {
		repositoryOwner := payload.Owner.Login
		if len(repositoryOwner) == 0 {
			repositoryOwner = owner
		}
		repositories = append(repositories, Repository{
			Identifier:    gitdata.RepositoryIdentifier{Owner: repositoryOwner, Name: payload.Name},
			DefaultBranch: payload.DefaultBranch,
			Archived:      payload.Archived,
			Fork:          payload.Fork,
		})
	}
	return repositories, nil
}

// LatestActivity reports the creation time of the most recent public event.
// Repositories without events report found=false.
func (client *Client) LatestActivity(executionContext context.Context, repository gitdata.RepositoryIdentifier) (time.Time, bool, error) {
	request := apiRequest{
		operation: operationLatestRepositoryEvent,
		method:    http.MethodGet,
		path:      repositoryPath(repository, eventsPathConstant),
		query:     url.Values{perPageQueryParameterName: []string{singleEventPageSizeConstant}},
	}

	var events []eventPayload
	if _, _, requestError := client.execute(executionContext, request, &events); requestError != nil {
		return time.Time{}, false, requestError
	}
	if len(events) == 0 || events[0].CreatedAt.IsZero() {
		return time.Time{}, false, nil
	}
	return events[0].CreatedAt, true, nil
}
