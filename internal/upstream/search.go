package upstream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/cache"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
)

type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
	Date    string `json:"date,omitempty"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

type ScrapeResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

type SearchService struct {
	client   *Client
	limiter  ratelimit.Admitter
	quota    ratelimit.Rule
	cache    *cache.Cache
	cacheTTL time.Duration
}

func NewSearchService(client *Client, limiter ratelimit.Admitter, quota ratelimit.Rule, c *cache.Cache, cacheTTL time.Duration) *SearchService {
	if quota.Scope == "" {
		quota.Scope = "search"
	}
	return &SearchService{client: client, limiter: limiter, quota: quota, cache: c, cacheTTL: cacheTTL}
}

func (s *SearchService) Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is empty", common.ErrValidation)
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	key := cache.Key("search", query, strconv.Itoa(maxResults))
	var cached SearchResponse
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	if err := ratelimit.Enforce(ctx, s.limiter, ratelimit.GlobalIdentity, s.quota); err != nil {
		return nil, err
	}

	var out SearchResponse
	if err := s.client.PostJSON(ctx, "/search", map[string]any{
		"query":       query,
		"max_results": maxResults,
	}, &out); err != nil {
		return nil, err
	}
	if len(out.Results) > 0 {
		s.cache.PutJSON(ctx, key, out, s.cacheTTL)
	}
	return &out, nil
}

func (s *SearchService) Scrape(ctx context.Context, url string) (*ScrapeResponse, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("%w: scrape url must be http(s)", common.ErrValidation)
	}

	key := cache.Key("scrape", url)
	var cached ScrapeResponse
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	if err := ratelimit.Enforce(ctx, s.limiter, ratelimit.GlobalIdentity, s.quota); err != nil {
		return nil, err
	}

	var out ScrapeResponse
	if err := s.client.PostJSON(ctx, "/scrape", map[string]any{"url": url}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "no content"
		}
		return nil, fmt.Errorf("%w: scrape %s: %s", common.ErrUpstreamUnavailable, url, msg)
	}
	s.cache.PutJSON(ctx, key, out, s.cacheTTL)
	return &out, nil
}
