package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultPageSize is the page size requested from list endpoints.
	DefaultPageSize = 100

	maximumPageSizeConstant                     = 100
	defaultRequestTimeoutConstant               = 30 * time.Second
	authorizationHeaderNameConstant             = "Authorization"
	authorizationHeaderTemplateConstant         = "Bearer %s"
	acceptHeaderNameConstant                    = "Accept"
	acceptHeaderValueConstant                   = "application/vnd.github+json"
	apiVersionHeaderNameConstant                = "X-GitHub-Api-Version"
	apiVersionHeaderValueConstant               = "2022-11-28"
	contentTypeHeaderNameConstant               = "Content-Type"
	contentTypeHeaderValueConstant              = "application/json"
	userAgentHeaderNameConstant                 = "User-Agent"
	defaultUserAgentConstant                    = "gitfleet"
	rateLimitRemainingHeaderNameConstant        = "X-RateLimit-Remaining"
	tokenRequiredMessageConstant                = "github token required"
	invalidBaseURLTemplateConstant              = "invalid github base url %q: %w"
	baseURLIncompleteMessageConstant            = "scheme and host required"
	requestCreationErrorTemplateConstant        = "unable to create %s request for %s: %w"
	requestEncodingErrorTemplateConstant        = "unable to encode %s request body: %w"
	responseDecodingErrorTemplateConstant       = "unable to decode %s response: %w"
	transportErrorTemplateConstant              = "%s %s: %w"
	responseErrorTemplateConstant               = "github api %s %s returned status %d: %s"
	rateLimitedMessageSuffixConstant            = " (rate limit exhausted)"
	requestCompletedMessageConstant             = "github api request completed"
	logFieldMethodConstant                      = "method"
	logFieldPathConstant                        = "path"
	logFieldStatusConstant                      = "status"
	logFieldDurationConstant                    = "duration"
	pathSeparatorConstant                       = "/"
	querySeparatorConstant                      = "?"
	repositoryPathTemplateConstant              = "/repos/%s/%s"
	responseBodyPreviewLimitConstant      int64 = 4096
)

var (
	// ErrTokenRequired indicates the client was configured without credentials.
	ErrTokenRequired = errors.New(tokenRequiredMessageConstant)

	errBaseURLIncomplete = errors.New(baseURLIncompleteMessageConstant)
)

// HTTPClient performs HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Configuration describes how to reach the GitHub API.
type Configuration struct {
	BaseURL   string
	Token     string
	PageSize  int
	UserAgent string
}

// ResponseError carries a non-success GitHub response.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

// Error describes the response.
func (responseError ResponseError) Error() string {
	return fmt.Sprintf(responseErrorTemplateConstant, responseError.Method, responseError.Path, responseError.StatusCode, responseError.Message)
}

// Client issues authenticated GitHub REST requests.
type Client struct {
	logger     *zap.Logger
	httpClient HTTPClient
	baseURL    string
	token      string
	pageSize   int
	userAgent  string
	// maximumPages bounds how many pages listAll follows.
	maximumPages int
}

// NewClient validates the configuration and constructs a Client. A nil
// httpClient falls back to an http.Client with a request timeout.
func NewClient(logger *zap.Logger, configuration Configuration, httpClient HTTPClient) (*Client, error) {
	token := strings.TrimSpace(configuration.Token)
	if len(token) == 0 {
		return nil, ErrTokenRequired
	}

	baseURLValue := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), pathSeparatorConstant)
	if len(baseURLValue) == 0 {
		baseURLValue = DefaultBaseURL
	}
	parsedBaseURL, parseError := url.Parse(baseURLValue)
	if parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, baseURLValue, parseError)
	}
	if len(parsedBaseURL.Scheme) == 0 || len(parsedBaseURL.Host) == 0 {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, baseURLValue, errBaseURLIncomplete)
	}

	pageSize := configuration.PageSize
	if pageSize <= 0 || pageSize > maximumPageSizeConstant {
		pageSize = DefaultPageSize
	}

	userAgent := strings.TrimSpace(configuration.UserAgent)
	if len(userAgent) == 0 {
		userAgent = defaultUserAgentConstant
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeoutConstant}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger:       logger,
		httpClient:   httpClient,
		baseURL:      baseURLValue,
		token:        token,
		pageSize:     pageSize,
		userAgent:    userAgent,
		maximumPages: maximumFollowedPagesConstant,
	}, nil
}

// apiRequest describes one REST call.
type apiRequest struct {
	operation gitdata.OperationName
	method    string
	path      string
	query     url.Values
	body      any
	// absoluteURL overrides path and query when following pagination links.
	absoluteURL string
	// conflictOnUnprocessable maps 422 responses to gitdata.ErrConflict.
	conflictOnUnprocessable bool
	// conflictStatuses lists additional statuses classified as gitdata.ErrConflict.
	conflictStatuses []int
	// acceptedStatuses lists non-2xx statuses returned to the caller instead of failing.
	acceptedStatuses []int
}

// execute performs the request, decodes a JSON response into result when it
// is non-nil, and returns the response headers and status.
func (client *Client) execute(executionContext context.Context, request apiRequest, result any) (http.Header, int, error) {
	requestURL := request.absoluteURL
	if len(requestURL) == 0 {
		requestURL = client.resolveURL(request.path, request.query)
	}

	var bodyReader io.Reader
	if request.body != nil {
		encodedBody, encodingError := json.Marshal(request.body)
		if encodingError != nil {
			return nil, 0, gitdata.NewOperationError(request.operation, gitdata.ErrRemoteFailure, fmt.Errorf(requestEncodingErrorTemplateConstant, request.operation, encodingError))
		}
		bodyReader = bytes.NewReader(encodedBody)
	}

	httpRequest, requestError := http.NewRequestWithContext(executionContext, request.method, requestURL, bodyReader)
	if requestError != nil {
		return nil, 0, gitdata.NewOperationError(request.operation, gitdata.ErrRemoteFailure, fmt.Errorf(requestCreationErrorTemplateConstant, request.method, request.path, requestError))
	}
	httpRequest.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(authorizationHeaderTemplateConstant, client.token))
	httpRequest.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	httpRequest.Header.Set(apiVersionHeaderNameConstant, apiVersionHeaderValueConstant)
	httpRequest.Header.Set(userAgentHeaderNameConstant, client.userAgent)
	if request.body != nil {
		httpRequest.Header.Set(contentTypeHeaderNameConstant, contentTypeHeaderValueConstant)
	}

	startTime := time.Now()
	response, transportError := client.httpClient.Do(httpRequest)
	if transportError != nil {
		return nil, 0, gitdata.NewOperationError(request.operation, gitdata.ErrRemoteFailure, fmt.Errorf(transportErrorTemplateConstant, request.method, httpRequest.URL.Path, transportError))
	}
	defer response.Body.Close()

	client.logger.Debug(
		requestCompletedMessageConstant,
		zap.String(logFieldMethodConstant, request.method),
		zap.String(logFieldPathConstant, httpRequest.URL.Path),
		zap.Int(logFieldStatusConstant, response.StatusCode),
		zap.Duration(logFieldDurationConstant, time.Since(startTime)),
	)

	if !isSuccessStatus(response.StatusCode) {
		if containsStatus(request.acceptedStatuses, response.StatusCode) {
			return response.Header, response.StatusCode, nil
		}
		return response.Header, response.StatusCode, client.responseFailure(request, httpRequest.URL.Path, response)
	}

	if result == nil || response.StatusCode == http.StatusNoContent {
		return response.Header, response.StatusCode, nil
	}
	if decodingError := json.NewDecoder(response.Body).Decode(result); decodingError != nil {
		return response.Header, response.StatusCode, gitdata.NewOperationError(request.operation, gitdata.ErrRemoteFailure, fmt.Errorf(responseDecodingErrorTemplateConstant, request.operation, decodingError))
	}
	return response.Header, response.StatusCode, nil
}

func (client *Client) responseFailure(request apiRequest, requestPath string, response *http.Response) error {
	responseError := ResponseError{
		Method:     request.method,
		Path:       requestPath,
		StatusCode: response.StatusCode,
		Message:    readErrorMessage(response.Body),
	}
	if response.Header.Get(rateLimitRemainingHeaderNameConstant) == "0" {
		responseError.Message += rateLimitedMessageSuffixConstant
	}
	return gitdata.NewOperationError(request.operation, classifyStatus(request, response.StatusCode), responseError)
}

// resolveURL joins the base URL with a path whose variable segments are
// already escaped.
func (client *Client) resolveURL(path string, query url.Values) string {
	resolved := client.baseURL + path
	if len(query) > 0 {
		resolved += querySeparatorConstant + query.Encode()
	}
	return resolved
}

// classifyStatus maps response statuses onto the gitdata error taxonomy.
func classifyStatus(request apiRequest, statusCode int) error {
	switch {
	case statusCode == http.StatusNotFound:
		return gitdata.ErrNotFound
	case statusCode == http.StatusConflict:
		return gitdata.ErrConflict
	case statusCode == http.StatusUnprocessableEntity && request.conflictOnUnprocessable:
		return gitdata.ErrConflict
	case containsStatus(request.conflictStatuses, statusCode):
		return gitdata.ErrConflict
	default:
		return gitdata.ErrRemoteFailure
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

func readErrorMessage(body io.Reader) string {
	rawBody, _ := io.ReadAll(io.LimitReader(body, responseBodyPreviewLimitConstant))
	var payload errorPayload
	if json.Unmarshal(rawBody, &payload) == nil && len(payload.Message) > 0 {
		return payload.Message
	}
	return strings.TrimSpace(string(rawBody))
}

func isSuccessStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

func containsStatus(statuses []int, statusCode int) bool {
	for _, candidate := range statuses {
		if candidate == statusCode {
			return true
		}
	}
	return false
}

// escapePathSegments escapes each slash-separated segment, keeping the slashes.
func escapePathSegments(value string) string {
	segments := strings.Split(value, pathSeparatorConstant)
	for segmentIndex, segment := range segments {
		segments[segmentIndex] = url.PathEscape(segment)
	}
	return strings.Join(segments, pathSeparatorConstant)
}

func repositoryPath(repository gitdata.RepositoryIdentifier, suffixTemplate string, arguments ...any) string {
	prefix := fmt.Sprintf(repositoryPathTemplateConstant, url.PathEscape(repository.Owner), url.PathEscape(repository.Name))
	return prefix + fmt.Sprintf(suffixTemplate, arguments...)
}
