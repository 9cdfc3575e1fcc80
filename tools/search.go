package tools

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher performs a web search restricted to one site.
type Searcher interface {
	Search(ctx context.Context, query, site string, num int) ([]SearchResult, error)
}

// GoogleSearcher searches through the Google Custom Search JSON API.
type GoogleSearcher struct {
	svc    *customsearch.Service
	apiKey string
	cx     string
}

// NewGoogleSearcher creates a searcher. endpoint may be empty to use the
// public API.
func NewGoogleSearcher(ctx context.Context, apiKey, cx string, client *http.Client, endpoint string) (*GoogleSearcher, error) {
	if apiKey == "" || cx == "" {
		return nil, NewToolError(CodeNotConfigured, "Google Search API key or CSE ID is not configured").
			WithDetail("help", "Set GOOGLE_SEARCH_API_KEY and CSE_ID")
	}
	if client == nil {
		client = http.DefaultClient
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}
	return &GoogleSearcher{svc: svc, apiKey: apiKey, cx: cx}, nil
}

// Search runs the query. The API key travels as a query parameter because a
// custom HTTP client replaces the library's own credential handling.
func (g *GoogleSearcher) Search(ctx context.Context, query, site string, num int) ([]SearchResult, error) {
	call := g.svc.Cse.List().Q(query).Cx(g.cx).Num(int64(num))
	if site != "" {
		call = call.SiteSearch(site)
	}

	resp, err := call.Context(ctx).Do(googleapi.QueryParameter("key", g.apiKey))
	if err != nil {
		return nil, NewToolError(CodeRequestFailed, "Google search request failed").
			WithDetail("error", err.Error())
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
