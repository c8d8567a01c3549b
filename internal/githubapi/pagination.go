package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	linkHeaderNameConstant       = "Link"
	linkSeparatorConstant        = ","
	linkParameterSeparator       = ";"
	linkNextRelationConstant     = `rel="next"`
	linkTargetPrefixConstant     = "<"
	linkTargetSuffixConstant     = ">"
	perPageQueryParameterName    = "per_page"
	maximumFollowedPagesConstant = 1000
	pageLimitErrorTemplate       = "pagination stopped after %d pages with more results pending"
)

// listAll fetches every page of a list endpoint by following Link rel="next".
// A listing that still has a next page at the page limit fails rather than
// returning a partial result.
func listAll[Item any](executionContext context.Context, client *Client, request apiRequest) ([]Item, error) {
	if request.query == nil {
		request.query = url.Values{}
	}
	request.query.Set(perPageQueryParameterName, strconv.Itoa(client.pageSize))

	var collected []Item
	for pageIndex := 0; ; pageIndex++ {
		if pageIndex == client.maximumPages {
			return nil, gitdata.NewOperationError(request.operation, gitdata.ErrRemoteFailure, fmt.Errorf(pageLimitErrorTemplate, client.maximumPages))
		}
		var page []Item
		headers, _, requestError := client.execute(executionContext, request, &page)
		if requestError != nil {
			return nil, requestError
		}
		collected = append(collected, page...)

		nextURL := nextPageURL(headers)
		if len(nextURL) == 0 {
			break
		}
		request.absoluteURL = nextURL
	}
	return collected, nil
}

// nextPageURL extracts the rel="next" target from a Link header.
func nextPageURL(headers http.Header) string {
	if headers == nil {
		return ""
	}
	for _, link := range strings.Split(headers.Get(linkHeaderNameConstant), linkSeparatorConstant) {
		parameters := strings.Split(link, linkParameterSeparator)
		if len(parameters) < 2 {
			continue
		}
		for _, parameter := range parameters[1:] {
			if strings.TrimSpace(parameter) != linkNextRelationConstant {
				continue
			}
			target := strings.TrimSpace(parameters[0])
			target = strings.TrimPrefix(target, linkTargetPrefixConstant)
			return strings.TrimSuffix(target, linkTargetSuffixConstant)
		}
	}
	return ""
}
