package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v62/github"
	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/internal/store"
	"github.com/xiaokk2024/mymanus1/tools/base"
)

const githubSite = "https://github.com/"

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"repo"`
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// extractRepos keeps only links that point at a repository root, such as
// https://github.com/owner/repo. Issue and file links are dropped, and each
// repository is kept once, compared case-insensitively.
func extractRepos(results []SearchResult) []Repo {
	var repos []Repo
	seen := make(map[string]bool)
	for _, r := range results {
		link := r.Link
		if !strings.Contains(link, "github.com") ||
			strings.Contains(link, "/issues/") ||
			strings.Contains(link, "/blob/") {
			continue
		}
		parts := strings.Split(link, "/")
		if len(parts) != 5 || parts[3] == "" || parts[4] == "" {
			continue
		}
		repo := Repo{Owner: parts[3], Name: parts[4]}
		key := strings.ToLower(repo.String())
		if seen[key] {
			continue
		}
		seen[key] = true
		repos = append(repos, repo)
	}
	return repos
}

// ReadmeFetcher returns the decoded README of a repository.
type ReadmeFetcher interface {
	Readme(ctx context.Context, repo Repo) (string, error)
}

// GitHubReadmes fetches READMEs through the GitHub REST API.
type GitHubReadmes struct {
	client *github.Client
}

// NewGitHubReadmes creates a fetcher. token may be empty, at the cost of a
// much lower rate limit.
func NewGitHubReadmes(httpClient *http.Client, token string) *GitHubReadmes {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubReadmes{client: client}
}

// Readme downloads and decodes the repository README.
func (g *GitHubReadmes) Readme(ctx context.Context, repo Repo) (string, error) {
	content, _, err := g.client.Repositories.GetReadme(ctx, repo.Owner, repo.Name, nil)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("README for %s not found", repo)
		}
		return "", fmt.Errorf("failed to fetch README for %s: %w", repo, err)
	}
	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode README for %s: %w", repo, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("README for %s is empty", repo)
	}
	return text, nil
}

// GitHubAnswerParams defines the parameters for get_answer_github
type GitHubAnswerParams struct {
	Q string `json:"q" schema:"required" description:"A GitHub search query, usually a project keyword taken from the user's question."`
}

// GitHubAnswerTool searches GitHub repositories and returns their READMEs,
// capped by a token budget.
type GitHubAnswerTool struct {
	base.BaseTool
	searcher Searcher
	readmes  ReadmeFetcher
	counter  TokenCounter
	cache    store.Store
	limit    int
	logger   *zap.Logger
}

// NewGitHubAnswerTool creates the get_answer_github tool.
func NewGitHubAnswerTool(searcher Searcher, readmes ReadmeFetcher, counter TokenCounter, opts ...AnswerOption) *GitHubAnswerTool {
	o := applyAnswerOptions(opts)
	return &GitHubAnswerTool{
		BaseTool: base.BaseTool{
			ToolName: "get_answer_github",
			ToolDesc: "GitHub search tool. Call it when the question is beyond your knowledge and the user " +
				"explicitly asks to search GitHub, for example \"tell me about the Qwen2 project on " +
				"GitHub\". It finds related repositories and returns their README text for you to " +
				"summarise. In every other case call get_answer instead.",
			Example: `{"q": "DeepSeek-R1"}`,
		},
		searcher: searcher,
		readmes:  readmes,
		counter:  counter,
		cache:    o.cache,
		limit:    o.limit,
		logger:   o.logger,
	}
}

// Parameters returns the parameters struct
func (t *GitHubAnswerTool) Parameters() interface{} {
	return &GitHubAnswerParams{}
}

// Execute searches GitHub and collects README text.
func (t *GitHubAnswerTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var args GitHubAnswerParams
	if err := DecodeParams(params, &args); err != nil {
		return "", err
	}
	if t.searcher == nil {
		return "", NewToolError(CodeNotConfigured, "Google Search API key or CSE ID is not configured")
	}

	results, err := t.searcher.Search(ctx, args.Q, githubSite, searchResults)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", NewToolError(CodeNoResults, "No related GitHub projects were found")
	}
	repos := extractRepos(results)
	if len(repos) == 0 {
		return "", NewToolError(CodeNoResults, "No repository links could be extracted from the search results")
	}

	b := newBudget(t.limit)
	var out strings.Builder
	var used []string
	for _, repo := range repos {
		page := t.readme(ctx, repo)
		if page == nil {
			continue
		}
		if !b.take(page.Tokens) {
			t.logger.Debug("token budget reached", zap.Int("used", b.used))
			break
		}
		out.WriteString("\n\n--- source: " + repo.String() + " ---\n")
		out.WriteString(page.Content)
		used = append(used, repo.String())
	}

	if len(used) == 0 {
		return "", NewToolError(CodeNoResults, "No README content could be extracted from the GitHub results")
	}
	t.logger.Info("github search answered", zap.String("q", args.Q), zap.Strings("repos", used))
	return strings.TrimSpace(out.String()), nil
}

func (t *GitHubAnswerTool) readme(ctx context.Context, repo Repo) *Page {
	key := store.Key(store.KindSearchHit, "github.com/"+repo.String())
	if t.cache != nil {
		var cached Page
		if err := t.cache.Get(key, &cached); err == nil {
			return &cached
		}
	}

	text, err := t.readmes.Readme(ctx, repo)
	if err != nil {
		t.logger.Warn("readme fetch failed", zap.String("repo", repo.String()), zap.Error(err))
		return nil
	}
	page := &Page{
		Link:    githubSite + repo.String(),
		Title:   repo.Owner + "_" + repo.Name,
		Content: text,
		Tokens:  t.counter.Count(text),
	}

	if t.cache != nil {
		if err := t.cache.Put(key, page); err != nil {
			t.logger.Warn("search cache write failed", zap.String("repo", repo.String()), zap.Error(err))
		}
	}
	return page
}
