// Package search provides a client for the Google Custom Search JSON API.
// The search backend is advisory: every failure degrades to empty result
// structures so the content pipeline keeps going without search context.
package search

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Result holds the outcome of a single query.
type Result struct {
	Query            string   `json:"query"`
	Items            []Item   `json:"items"`
	RelatedQuestions []string `json:"related_questions"`
	RelatedSearches  []string `json:"related_searches"`
	Error            string   `json:"error,omitempty"`
}

// Item is one organic search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Config holds client construction settings.
type Config struct {
	APIKey   string
	EngineID string
	BaseURL  string
	// Country and Language restrict results, e.g. "br" and "lang_pt".
	Country  string
	Language string
	Timeout  time.Duration
}

// Client queries the search backend.
type Client struct {
	cfg  Config
	http *resty.Client
}

// NewClient creates a search client. Missing credentials are tolerated;
// queries then return empty results instead of failing.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout),
	}
}

type apiResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Context struct {
		Facets [][]struct {
			Anchor string `json:"anchor"`
			Label  string `json:"label"`
		} `json:"facets"`
	} `json:"context"`
}

// Search runs each query against the backend. It never returns an error:
// configuration or transport failures produce empty-result structures with
// the failure recorded per query.
func (c *Client) Search(ctx context.Context, queries []string) []Result {
	if c.cfg.APIKey == "" || c.cfg.EngineID == "" {
		logger.Error(ctx, "Search credentials not configured; returning empty results")
		return emptyResults(queries, "search backend not configured")
	}

	results := make([]Result, 0, len(queries))
	for _, query := range queries {
		results = append(results, c.searchOne(ctx, query))
	}
	return results
}

func (c *Client) searchOne(ctx context.Context, query string) Result {
	var body apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": c.cfg.APIKey,
			"cx":  c.cfg.EngineID,
			"q":   query,
			"gl":  c.cfg.Country,
			"lr":  c.cfg.Language,
		}).
		SetResult(&body).
		Get("")
	if err != nil {
		logger.Error(ctx, "Search request failed", "query", query, "err", err)
		return Result{Query: query, Items: []Item{}, RelatedQuestions: []string{}, RelatedSearches: []string{}, Error: err.Error()}
	}
	if resp.IsError() {
		logger.Error(ctx, "Search backend returned error status", "query", query, "status", resp.StatusCode())
		return Result{Query: query, Items: []Item{}, RelatedQuestions: []string{}, RelatedSearches: []string{}, Error: resp.Status()}
	}

	items := make([]Item, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, Item{Title: it.Title, Link: it.Link, Snippet: it.Snippet})
	}

	// The API exposes related searches through context facets; people-also-ask
	// style questions are not returned reliably, so related searches feed both.
	related := make([]string, 0)
	for _, facetGroup := range body.Context.Facets {
		for _, facet := range facetGroup {
			if facet.Label != "" {
				related = append(related, facet.Label)
			}
		}
	}

	return Result{
		Query:            query,
		Items:            items,
		RelatedQuestions: related,
		RelatedSearches:  related,
	}
}

func emptyResults(queries []string, reason string) []Result {
	results := make([]Result, 0, len(queries))
	for _, q := range queries {
		results = append(results, Result{
			Query:            q,
			Items:            []Item{},
			RelatedQuestions: []string{},
			RelatedSearches:  []string{},
			Error:            reason,
		})
	}
	return results
}
