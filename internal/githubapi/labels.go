package githubapi

import (
	"context"
	"net/http"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	labelsPathConstant   = "/labels"
	labelPathTemplate    = "/labels/%s"
	operationListLabels  = gitdata.OperationName("ListLabels")
	operationCreateLabel = gitdata.OperationName("CreateLabel")
	operationUpdateLabel = gitdata.OperationName("UpdateLabel")
)

// Label describes an issue label.
type Label struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Color       string `json:"color" yaml:"color" mapstructure:"color"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
}

type updateLabelPayload struct {
	NewName     string `json:"new_name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// ListLabels returns every label defined in the repository.
func (client *Client) ListLabels(executionContext context.Context, repository gitdata.RepositoryIdentifier) ([]Label, error) {
	request := apiRequest{
		operation: operationListLabels,
		method:    http.MethodGet,
		path:      repositoryPath(repository, labelsPathConstant),
	}
	return listAll[Label](executionContext, client, request)
}

// CreateLabel defines a new label. A label with the same name yields gitdata.ErrConflict.
func (client *Client) CreateLabel(executionContext context.Context, repository gitdata.RepositoryIdentifier, label Label) (Label, error) {
	var created Label
	request := apiRequest{
		operation:               operationCreateLabel,
		method:                  http.MethodPost,
		path:                    repositoryPath(repository, labelsPathConstant),
		body:                    label,
		conflictOnUnprocessable: true,
	}
	if _, _, requestError := client.execute(executionContext, request, &created); requestError != nil {
		return Label{}, requestError
	}
	return created, nil
}

// UpdateLabel rewrites the label currently named currentName.
func (client *Client) UpdateLabel(executionContext context.Context, repository gitdata.RepositoryIdentifier, currentName string, label Label) (Label, error) {
	var updated Label
	request := apiRequest{
		operation: operationUpdateLabel,
		method:    http.MethodPatch,
		path:      repositoryPath(repository, labelPathTemplate, escapePathSegments(currentName)),
		body:      updateLabelPayload{NewName: label.Name, Color: label.Color, Description: label.Description},
	}
	if _, _, requestError := client.execute(executionContext, request, &updated); requestError != nil {
		return Label{}, requestError
	}
	return updated, nil
}
