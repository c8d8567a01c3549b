package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	appInstallationsPathConstant     = "/app/installations"
	installationTokenPathTemplate    = "/app/installations/%d/access_tokens"
	operationListAppInstallations    = gitdata.OperationName("ListAppInstallations")
	operationCreateInstallationToken = gitdata.OperationName("CreateInstallationToken")
)

// AppInstallation is one installation of a GitHub App.
type AppInstallation struct {
	ID      int64
	Account string
}

// InstallationToken is a short-lived token acting as an app installation.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type installationPayload struct {
	ID      int64        `json:"id"`
	Account ownerPayload `json:"account"`
}

// ListAppInstallations returns the installations of the app the client
// authenticates as. The client token must be an app JWT.
func (client *Client) ListAppInstallations(executionContext context.Context) ([]AppInstallation, error) {
	request := apiRequest{
		operation: operationListAppInstallations,
		method:    http.MethodGet,
		path:      appInstallationsPathConstant,
	}
	payloads, listError := listAll[installationPayload](executionContext, client, request)
	if listError != nil {
		return nil, listError
	}

	installations := make([]AppInstallation, 0, len(payloads))
	for _, payload := range payloads {
		installations = append(installations, AppInstallation{ID: payload.ID, Account: payload.Account.Login})
	}
	return installations, nil
}

// CreateInstallationToken exchanges the app JWT for an installation token.
func (client *Client) CreateInstallationToken(executionContext context.Context, installationID int64) (InstallationToken, error) {
	var token InstallationToken
	request := apiRequest{
		operation: operationCreateInstallationToken,
		method:    http.MethodPost,
		path:      fmt.Sprintf(installationTokenPathTemplate, installationID),
	}
	if _, _, requestError := client.execute(executionContext, request, &token); requestError != nil {
		return InstallationToken{}, requestError
	}
	return token, nil
}
