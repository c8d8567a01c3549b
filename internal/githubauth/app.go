package githubauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/form3tech-oss/jwt-go"

	"github.com/temirov/gitfleet/internal/githubapi"
)

// Environment variables holding the GitHub App private key, as PEM content or
// as a path to a PEM file.
const (
	EnvGitHubAppPrivateKey     = "GITHUB_APP_PRIVATE_KEY"
	EnvGitHubAppPrivateKeyPath = "GITHUB_APP_PRIVATE_KEY_PATH"
)

const (
	appTokenSourceTypeValueConstant     = "app"
	appReferenceSeparatorConstant       = "/"
	appTokenBackdateConstant            = time.Minute
	appTokenLifetimeConstant            = 9 * time.Minute
	appReferenceInvalidMessageConstant  = "app token source must be app:APP_ID or app:APP_ID/INSTALLATION_ID"
	appClientMissingMessageConstant     = "app token source requires a github api client"
	appPrivateKeyMissingMessageConstant = "github app private key not found; set GITHUB_APP_PRIVATE_KEY or GITHUB_APP_PRIVATE_KEY_PATH"
	appNoInstallationsMessageConstant   = "github app has no installations"
	appPrivateKeyReadErrorTemplate      = "unable to read github app private key %s: %w"
	appPrivateKeyParseErrorTemplate     = "unable to parse github app private key: %w"
	appTokenSigningErrorTemplate        = "unable to sign github app token: %w"
	appClientCreationErrorTemplate      = "unable to create github app client: %w"
	appInstallationListErrorTemplate    = "unable to list github app installations: %w"
	appInstallationTokenErrorTemplate   = "unable to create token for installation %d: %w"
)

var (
	errAppReferenceInvalid  = errors.New(appReferenceInvalidMessageConstant)
	errAppClientMissing     = errors.New(appClientMissingMessageConstant)
	errAppPrivateKeyMissing = errors.New(appPrivateKeyMissingMessageConstant)
	errAppNoInstallations   = errors.New(appNoInstallationsMessageConstant)
)

// TokenSourceTypeApp authenticates as a GitHub App installation.
const TokenSourceTypeApp TokenSourceType = TokenSourceType(appTokenSourceTypeValueConstant)

// AppClient is the part of the GitHub API needed to act as an app installation.
type AppClient interface {
	ListAppInstallations(executionContext context.Context) ([]githubapi.AppInstallation, error)
	CreateInstallationToken(executionContext context.Context, installationID int64) (githubapi.InstallationToken, error)
}

// AppClientFactory builds an AppClient authenticated with the signed app JWT.
type AppClientFactory func(appToken string) (AppClient, error)

// parseAppReference splits APP_ID[/INSTALLATION_ID]. Account stays empty when
// no installation is named.
func parseAppReference(reference string) (TokenSourceConfiguration, error) {
	appIdentifier, installationIdentifier, hasInstallation := strings.Cut(reference, appReferenceSeparatorConstant)
	appIdentifier = strings.TrimSpace(appIdentifier)
	installationIdentifier = strings.TrimSpace(installationIdentifier)
	if !isPositiveInteger(appIdentifier) || (hasInstallation && !isPositiveInteger(installationIdentifier)) {
		return TokenSourceConfiguration{}, errAppReferenceInvalid
	}
	return TokenSourceConfiguration{Type: TokenSourceTypeApp, Reference: appIdentifier, Account: installationIdentifier}, nil
}

func isPositiveInteger(value string) bool {
	parsedValue, parseError := strconv.ParseInt(value, 10, 64)
	return parseError == nil && parsedValue > 0
}

// resolveAppToken signs an app JWT, picks the installation (the named one, or
// the first the app reports) and exchanges the JWT for an installation token.
func (resolver *Resolver) resolveAppToken(resolutionContext context.Context, source TokenSourceConfiguration) (string, error) {
	if resolver.appClientFactory == nil {
		return "", errAppClientMissing
	}

	privateKeyPEM, keyError := resolver.appPrivateKey()
	if keyError != nil {
		return "", keyError
	}
	appToken, signingError := signAppToken(source.Reference, privateKeyPEM, resolver.now())
	if signingError != nil {
		return "", signingError
	}

	appClient, clientError := resolver.appClientFactory(appToken)
	if clientError != nil {
		return "", fmt.Errorf(appClientCreationErrorTemplate, clientError)
	}

	var installationID int64
	if len(source.Account) > 0 {
		installationID, _ = strconv.ParseInt(source.Account, 10, 64)
	} else {
		installations, listError := appClient.ListAppInstallations(resolutionContext)
		if listError != nil {
			return "", fmt.Errorf(appInstallationListErrorTemplate, listError)
		}
		if len(installations) == 0 {
			return "", errAppNoInstallations
		}
		installationID = installations[0].ID
	}

	installationToken, tokenError := appClient.CreateInstallationToken(resolutionContext, installationID)
	if tokenError != nil {
		return "", fmt.Errorf(appInstallationTokenErrorTemplate, installationID, tokenError)
	}
	return installationToken.Token, nil
}

func (resolver *Resolver) appPrivateKey() ([]byte, error) {
	if privateKey, found := lookup(resolver.environmentLookup, EnvGitHubAppPrivateKey); found {
		return []byte(privateKey), nil
	}
	keyPath, found := lookup(resolver.environmentLookup, EnvGitHubAppPrivateKeyPath)
	if !found {
		return nil, errAppPrivateKeyMissing
	}
	keyPath = resolver.homeExpander.Expand(keyPath)
	contents, readError := resolver.fileReader(keyPath)
	if readError != nil {
		return nil, fmt.Errorf(appPrivateKeyReadErrorTemplate, keyPath, readError)
	}
	return contents, nil
}

// signAppToken builds the RS256 JWT GitHub expects from an app. The issue
// time is backdated to tolerate clock drift.
func signAppToken(appIdentifier string, privateKeyPEM []byte, issuedAt time.Time) (string, error) {
	privateKey, parseError := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if parseError != nil {
		return "", fmt.Errorf(appPrivateKeyParseErrorTemplate, parseError)
	}
	claims := jwt.StandardClaims{
		Issuer:    appIdentifier,
		IssuedAt:  issuedAt.Add(-appTokenBackdateConstant).Unix(),
		ExpiresAt: issuedAt.Add(appTokenLifetimeConstant).Unix(),
	}
	signedToken, signingError := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if signingError != nil {
		return "", fmt.Errorf(appTokenSigningErrorTemplate, signingError)
	}
	return signedToken, nil
}
