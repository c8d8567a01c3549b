package githubauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	jwt "github.com/form3tech-oss/jwt-go"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitfleet/internal/githubapi"
	"github.com/temirov/gitfleet/internal/githubauth"
)

const installationTokenConstant = "ghs_installation"

type recordingAppClient struct {
	installations       []githubapi.AppInstallation
	listError           error
	requestedInstallIDs []int64
}

func (client *recordingAppClient) ListAppInstallations(context.Context) ([]githubapi.AppInstallation, error) {
	return client.installations, client.listError
}

func (client *recordingAppClient) CreateInstallationToken(_ context.Context, installationID int64) (githubapi.InstallationToken, error) {
	client.requestedInstallIDs = append(client.requestedInstallIDs, installationID)
	return githubapi.InstallationToken{Token: installationTokenConstant}, nil
}

func generatePrivateKey(testInstance *testing.T) (*rsa.PrivateKey, string) {
	testInstance.Helper()
	privateKey, generationError := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(testInstance, generationError)
	encoded := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return privateKey, string(encoded)
}

func TestParseAppTokenSource(testInstance *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expected      githubauth.TokenSourceConfiguration
		expectedError bool
	}{
		{name: "app_only", input: "app:12345", expected: githubauth.TokenSourceConfiguration{Type: githubauth.TokenSourceTypeApp, Reference: "12345"}},
		{name: "app_and_installation", input: "app: 12345/678 ", expected: githubauth.TokenSourceConfiguration{Type: githubauth.TokenSourceTypeApp, Reference: "12345", Account: "678"}},
		{name: "missing_app", input: "app:", expectedError: true},
		{name: "non_numeric_app", input: "app:gitfleet", expectedError: true},
		{name: "empty_installation", input: "app:12345/", expectedError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			source, parseError := githubauth.ParseTokenSource(testCase.input)
			if testCase.expectedError {
				require.Error(subTest, parseError)
				return
			}
			require.NoError(subTest, parseError)
			require.Equal(subTest, testCase.expected, source)
		})
	}
}

func TestResolverResolvesAppInstallationToken(testInstance *testing.T) {
	privateKey, privateKeyPEM := generatePrivateKey(testInstance)
	keyPath := filepath.Join(testInstance.TempDir(), "app.pem")
	require.NoError(testInstance, os.WriteFile(keyPath, []byte(privateKeyPEM), 0o600))

	testCases := []struct {
		name                   string
		source                 string
		environment            map[string]string
		installations          []githubapi.AppInstallation
		expectedInstallationID int64
	}{
		{
			name:                   "first_installation_with_inline_key",
			source:                 "app:12345",
			environment:            map[string]string{githubauth.EnvGitHubAppPrivateKey: privateKeyPEM},
			installations:          []githubapi.AppInstallation{{ID: 11, Account: "octo"}, {ID: 22, Account: "other"}},
			expectedInstallationID: 11,
		},
		{
			name:                   "named_installation_with_key_file",
			source:                 "app:12345/22",
			environment:            map[string]string{githubauth.EnvGitHubAppPrivateKeyPath: keyPath},
			expectedInstallationID: 22,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			environmentLookup := func(key string) (string, bool) {
				value, found := testCase.environment[key]
				return value, found
			}
			appClient := &recordingAppClient{installations: testCase.installations}
			var signedToken string
			resolver := githubauth.NewResolver(environmentLookup, nil, nil).WithAppClientFactory(func(appToken string) (githubauth.AppClient, error) {
				signedToken = appToken
				return appClient, nil
			})

			token, resolveError := resolver.Resolve(context.Background(), testCase.source)
			require.NoError(subTest, resolveError)
			require.Equal(subTest, installationTokenConstant, token)
			require.Equal(subTest, []int64{testCase.expectedInstallationID}, appClient.requestedInstallIDs)

			claims := &jwt.StandardClaims{}
			parsedToken, parseError := jwt.ParseWithClaims(signedToken, claims, func(token *jwt.Token) (interface{}, error) {
				require.Equal(subTest, jwt.SigningMethodRS256.Alg(), token.Method.Alg())
				return &privateKey.PublicKey, nil
			})
			require.NoError(subTest, parseError)
			require.True(subTest, parsedToken.Valid)
			require.Equal(subTest, "12345", claims.Issuer)
			require.Greater(subTest, claims.ExpiresAt, claims.IssuedAt)
		})
	}
}

func TestResolverAppTokenFailures(testInstance *testing.T) {
	_, privateKeyPEM := generatePrivateKey(testInstance)
	withKey := map[string]string{githubauth.EnvGitHubAppPrivateKey: privateKeyPEM}

	testCases := []struct {
		name          string
		environment   map[string]string
		appClient     *recordingAppClient
		expectedError string
	}{
		{name: "no_client_factory", environment: withKey, expectedError: "requires a github api client"},
		{name: "missing_private_key", environment: map[string]string{}, appClient: &recordingAppClient{}, expectedError: "private key not found"},
		{name: "invalid_private_key", environment: map[string]string{githubauth.EnvGitHubAppPrivateKey: "not a key"}, appClient: &recordingAppClient{}, expectedError: "unable to parse github app private key"},
		{name: "no_installations", environment: withKey, appClient: &recordingAppClient{}, expectedError: "has no installations"},
		{name: "listing_fails", environment: withKey, appClient: &recordingAppClient{listError: errors.New("bad credentials")}, expectedError: "bad credentials"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			environmentLookup := func(key string) (string, bool) {
				value, found := testCase.environment[key]
				return value, found
			}
			resolver := githubauth.NewResolver(environmentLookup, nil, nil)
			if testCase.appClient != nil {
				resolver = resolver.WithAppClientFactory(func(string) (githubauth.AppClient, error) {
					return testCase.appClient, nil
				})
			}

			_, resolveError := resolver.Resolve(context.Background(), "app:12345")
			require.ErrorContains(subTest, resolveError, testCase.expectedError)
		})
	}
}
