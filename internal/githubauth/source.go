package githubauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zalando/go-keyring"

	pathutils "github.com/temirov/gitfleet/internal/utils/path"
)

const (
	tokenSourceSeparatorConstant               = ":"
	keyringReferenceSeparatorConstant          = "/"
	environmentTokenSourceTypeValueConstant    = "env"
	fileTokenSourceTypeValueConstant           = "file"
	keyringTokenSourceTypeValueConstant        = "keyring"
	tokenSourceMissingErrorMessageConstant     = "token source must be provided"
	environmentNameMissingErrorMessageConstant = "environment variable name must be provided"
	filePathMissingErrorMessageConstant        = "token file path must be provided"
	keyringReferenceInvalidMessageConstant     = "keyring token source must be keyring:service/account"
	tokenNotFoundMessageConstant               = "no github token found; set GH_TOKEN, GITHUB_TOKEN, or GITHUB_API_TOKEN or configure github.token_source"
	environmentTokenMissingTemplateConstant    = "environment variable %s is not set"
	fileReadErrorTemplateConstant              = "unable to read token file %s: %w"
	fileTokenEmptyErrorTemplateConstant        = "token file %s is empty"
	keyringReadErrorTemplateConstant           = "unable to read keyring entry %s/%s: %w"
	keyringTokenEmptyErrorTemplateConstant     = "keyring entry %s/%s is empty"
	unsupportedTokenSourceTemplateConstant     = "unsupported token source type %q"
)

var (
	// ErrTokenNotFound indicates no source yielded a token.
	ErrTokenNotFound = errors.New(tokenNotFoundMessageConstant)

	errKeyringReferenceInvalid = errors.New(keyringReferenceInvalidMessageConstant)
)

// TokenSourceType enumerates the supported token retrieval mechanisms.
type TokenSourceType string

// Token source type enumerations.
const (
	TokenSourceTypeEnvironment TokenSourceType = TokenSourceType(environmentTokenSourceTypeValueConstant)
	TokenSourceTypeFile        TokenSourceType = TokenSourceType(fileTokenSourceTypeValueConstant)
	TokenSourceTypeKeyring     TokenSourceType = TokenSourceType(keyringTokenSourceTypeValueConstant)
)

// TokenSourceConfiguration specifies how to locate a credentials token.
// Keyring sources carry the service in Reference and the account in Account;
// app sources carry the app ID in Reference and the optional installation ID
// in Account.
type TokenSourceConfiguration struct {
	Type      TokenSourceType
	Reference string
	Account   string
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// KeyringReader reads a secret from the operating system keyring.
type KeyringReader func(service string, account string) (string, error)

// ParseTokenSource interprets textual token source declarations. A bare
// value names an environment variable.
func ParseTokenSource(sourceValue string) (TokenSourceConfiguration, error) {
	trimmedValue := strings.TrimSpace(sourceValue)
	if len(trimmedValue) == 0 {
		return TokenSourceConfiguration{}, errors.New(tokenSourceMissingErrorMessageConstant)
	}

	components := strings.SplitN(trimmedValue, tokenSourceSeparatorConstant, 2)
	if len(components) == 1 {
		return TokenSourceConfiguration{Type: TokenSourceTypeEnvironment, Reference: trimmedValue}, nil
	}

	sourceType := strings.ToLower(strings.TrimSpace(components[0]))
	reference := strings.TrimSpace(components[1])

	switch sourceType {
	case environmentTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSourceConfiguration{}, errors.New(environmentNameMissingErrorMessageConstant)
		}
		return TokenSourceConfiguration{Type: TokenSourceTypeEnvironment, Reference: reference}, nil
	case fileTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSourceConfiguration{}, errors.New(filePathMissingErrorMessageConstant)
		}
		return TokenSourceConfiguration{Type: TokenSourceTypeFile, Reference: reference}, nil
	case keyringTokenSourceTypeValueConstant:
		keyringParts := strings.SplitN(reference, keyringReferenceSeparatorConstant, 2)
		if len(keyringParts) != 2 || len(strings.TrimSpace(keyringParts[0])) == 0 || len(strings.TrimSpace(keyringParts[1])) == 0 {
			return TokenSourceConfiguration{}, errKeyringReferenceInvalid
		}
		return TokenSourceConfiguration{
			Type:      TokenSourceTypeKeyring,
			Reference: strings.TrimSpace(keyringParts[0]),
			Account:   strings.TrimSpace(keyringParts[1]),
		}, nil
	case appTokenSourceTypeValueConstant:
		return parseAppReference(reference)
	default:
		return TokenSourceConfiguration{}, fmt.Errorf(unsupportedTokenSourceTemplateConstant, sourceType)
	}
}

// Resolver retrieves authentication tokens from configured sources.
type Resolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
	keyringReader     KeyringReader
	homeExpander      *pathutils.HomeExpander
	appClientFactory  AppClientFactory
	now               func() time.Time
}

// NewResolver creates a token resolver; nil dependencies fall back to the
// process environment, the filesystem, and the system keyring.
func NewResolver(environmentLookup EnvironmentLookup, fileReader FileReader, keyringReader KeyringReader) *Resolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	if keyringReader == nil {
		keyringReader = keyring.Get
	}
	return &Resolver{
		environmentLookup: environmentLookup,
		fileReader:        fileReader,
		keyringReader:     keyringReader,
		homeExpander:      pathutils.NewHomeExpander(),
		now:               time.Now,
	}
}

// WithAppClientFactory returns a copy of the resolver able to resolve app
// token sources through clients built by factory.
func (resolver *Resolver) WithAppClientFactory(factory AppClientFactory) *Resolver {
	configured := *resolver
	configured.appClientFactory = factory
	return &configured
}

// Resolve reads the token named by sourceValue. An empty source falls back to
// the GH_TOKEN, GITHUB_TOKEN, and GITHUB_API_TOKEN environment variables.
func (resolver *Resolver) Resolve(resolutionContext context.Context, sourceValue string) (string, error) {
	if len(strings.TrimSpace(sourceValue)) == 0 {
		token, found := ResolveToken(resolver.environmentLookup)
		if !found {
			return "", ErrTokenNotFound
		}
		return token, nil
	}

	source, parseError := ParseTokenSource(sourceValue)
	if parseError != nil {
		return "", parseError
	}
	return resolver.ResolveSource(resolutionContext, source)
}

// ResolveSource reads the token from an already parsed source.
func (resolver *Resolver) ResolveSource(resolutionContext context.Context, source TokenSourceConfiguration) (string, error) {
	if contextError := resolutionContext.Err(); contextError != nil {
		return "", contextError
	}

	switch source.Type {
	case TokenSourceTypeEnvironment:
		value, found := lookup(resolver.environmentLookup, source.Reference)
		if !found {
			return "", fmt.Errorf(environmentTokenMissingTemplateConstant, source.Reference)
		}
		return value, nil
	case TokenSourceTypeFile:
		tokenPath := resolver.homeExpander.Expand(source.Reference)
		contents, readError := resolver.fileReader(tokenPath)
		if readError != nil {
			return "", fmt.Errorf(fileReadErrorTemplateConstant, tokenPath, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(fileTokenEmptyErrorTemplateConstant, tokenPath)
		}
		return trimmedValue, nil
	case TokenSourceTypeKeyring:
		secret, keyringError := resolver.keyringReader(source.Reference, source.Account)
		if keyringError != nil {
			return "", fmt.Errorf(keyringReadErrorTemplateConstant, source.Reference, source.Account, keyringError)
		}
		trimmedValue := strings.TrimSpace(secret)
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(keyringTokenEmptyErrorTemplateConstant, source.Reference, source.Account)
		}
		return trimmedValue, nil
	case TokenSourceTypeApp:
		return resolver.resolveAppToken(resolutionContext, source)
	default:
		return "", fmt.Errorf(unsupportedTokenSourceTemplateConstant, source.Type)
	}
}
