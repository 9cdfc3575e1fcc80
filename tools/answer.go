package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/internal/store"
	"github.com/xiaokk2024/mymanus1/tools/base"
)

const (
	zhihuSite     = "https://zhihu.com/"
	searchResults = 5
)

// AnswerParams defines the parameters for get_answer
type AnswerParams struct {
	Q string `json:"q" schema:"required" description:"A question phrased for a Zhihu search."`
}

// AnswerTool searches Zhihu and returns the extracted text of the top hits,
// capped by a token budget.
type AnswerTool struct {
	base.BaseTool
	searcher Searcher
	fetcher  PageFetcher
	counter  TokenCounter
	cache    store.Store
	limit    int
	logger   *zap.Logger
}

// AnswerOption configures the search tools.
type AnswerOption func(*answerOptions)

type answerOptions struct {
	cache  store.Store
	limit  int
	logger *zap.Logger
}

// WithCache caches fetched pages in s.
func WithCache(s store.Store) AnswerOption {
	return func(o *answerOptions) { o.cache = s }
}

// WithTokenBudget overrides the per-call token cap.
func WithTokenBudget(limit int) AnswerOption {
	return func(o *answerOptions) { o.limit = limit }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) AnswerOption {
	return func(o *answerOptions) { o.logger = logger }
}

func applyAnswerOptions(opts []AnswerOption) answerOptions {
	o := answerOptions{limit: DefaultTokenBudget, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewAnswerTool creates the get_answer tool.
func NewAnswerTool(searcher Searcher, fetcher PageFetcher, counter TokenCounter, opts ...AnswerOption) *AnswerTool {
	o := applyAnswerOptions(opts)
	return &AnswerTool{
		BaseTool: base.BaseTool{
			ToolName: "get_answer",
			ToolDesc: "Web search tool. Call it when the user's question is beyond your knowledge or you " +
				"do not know the answer. It searches Zhihu for related text, which you should then " +
				"summarise to answer the user. When the user explicitly asks about a project on GitHub, " +
				"call get_answer_github instead.",
			Example: `{"q": "What is MCP?"}`,
		},
		searcher: searcher,
		fetcher:  fetcher,
		counter:  counter,
		cache:    o.cache,
		limit:    o.limit,
		logger:   o.logger,
	}
}

// Parameters returns the parameters struct
func (t *AnswerTool) Parameters() interface{} {
	return &AnswerParams{}
}

// Execute searches and collects page text.
func (t *AnswerTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var args AnswerParams
	if err := DecodeParams(params, &args); err != nil {
		return "", err
	}
	if t.searcher == nil {
		return "", NewToolError(CodeNotConfigured, "Google Search API key or CSE ID is not configured")
	}

	results, err := t.searcher.Search(ctx, args.Q, zhihuSite, searchResults)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", NewToolError(CodeNoResults, "No related Zhihu results were found")
	}

	b := newBudget(t.limit)
	var sections, titles []string
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		page := t.page(ctx, r.Link)
		if page == nil {
			continue
		}
		if !b.take(page.Tokens) {
			t.logger.Debug("token budget reached", zap.Int("used", b.used))
			break
		}
		sections = append(sections, page.Content)
		titles = append(titles, page.Title)
	}

	if len(sections) == 0 {
		return "", NewToolError(CodeNoResults, "No usable content could be extracted from the search results")
	}
	t.logger.Info("search answered", zap.String("q", args.Q), zap.Strings("titles", titles))
	return strings.TrimSpace(strings.Join(sections, "\n\n")), nil
}

// page returns the cached page for link or fetches and caches it.
func (t *AnswerTool) page(ctx context.Context, link string) *Page {
	key := store.Key(store.KindSearchHit, link)
	if t.cache != nil {
		var cached Page
		if err := t.cache.Get(key, &cached); err == nil {
			return &cached
		} else if !errors.Is(err, store.ErrNotFound) {
			t.logger.Warn("search cache read failed", zap.String("link", link), zap.Error(err))
		}
	}

	page, err := t.fetcher.Fetch(ctx, link)
	if err != nil {
		t.logger.Warn("page fetch failed", zap.String("link", link), zap.Error(err))
		return nil
	}
	if page == nil {
		t.logger.Debug("no content extracted", zap.String("link", link))
		return nil
	}
	page.Tokens = t.counter.Count(page.Content)

	if t.cache != nil {
		if err := t.cache.Put(key, page); err != nil {
			t.logger.Warn("search cache write failed", zap.String("link", link), zap.Error(err))
		}
	}
	return page
}
