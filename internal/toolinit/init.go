package toolinit

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/internal/database"
	"github.com/xiaokk2024/mymanus1/internal/store"
	"github.com/xiaokk2024/mymanus1/tools"
	"github.com/xiaokk2024/mymanus1/tools/registry"
)

// Deps carries the collaborators the built-in tools need. Nil fields leave
// the matching tools registered but reporting NOT_CONFIGURED when called.
type Deps struct {
	DB        database.Provider
	Searcher  tools.Searcher
	Pages     tools.PageFetcher
	Readmes   tools.ReadmeFetcher
	Counter   tools.TokenCounter
	Cache     store.Store
	FigureDir string
	Logger    *zap.Logger
}

// Settings holds the raw credentials used by NewDeps.
type Settings struct {
	DB              database.Config
	GoogleAPIKey    string
	CSEID           string
	GitHubToken     string
	SearchCookie    string
	SearchUserAgent string
	Proxy           tools.ProxyConfig
	FigureDir       string
	HTTPTimeout     time.Duration
}

// NewDeps builds the production collaborators from settings. A missing
// search credential is logged and leaves the searcher unset.
func NewDeps(ctx context.Context, s Settings, cache store.Store, logger *zap.Logger) Deps {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := s.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := tools.NewHTTPClient(s.Proxy, timeout)

	deps := Deps{
		DB:        database.NewPool(s.DB),
		Pages:     tools.NewZhihuFetcher(client, s.SearchCookie, s.SearchUserAgent),
		Readmes:   tools.NewGitHubReadmes(client, s.GitHubToken),
		Counter:   tools.NewTiktokenCounter(logger),
		Cache:     cache,
		FigureDir: s.FigureDir,
		Logger:    logger,
	}

	searcher, err := tools.NewGoogleSearcher(ctx, s.GoogleAPIKey, s.CSEID, client, "")
	if err != nil {
		logger.Warn("web search disabled", zap.Error(err))
	} else {
		deps.Searcher = searcher
	}
	return deps
}

// RegisterAll registers the built-in tools in catalogue order.
func RegisterAll(r *registry.Registry, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	figureDir := deps.FigureDir
	if figureDir == "" {
		figureDir = tools.DefaultFigureDir
	}

	counter := deps.Counter
	if counter == nil {
		counter = tools.NewTiktokenCounter(logger)
	}

	answerOpts := []tools.AnswerOption{tools.WithLogger(logger)}
	if deps.Cache != nil {
		answerOpts = append(answerOpts, tools.WithCache(deps.Cache))
	}

	// Code execution and plotting
	all := []tools.Tool{
		tools.NewPythonTool(logger),
		tools.NewFigureTool(figureDir, logger),
	}

	// Database
	all = append(all,
		tools.NewSQLTool(deps.DB, logger),
		tools.NewExtractTool(deps.DB, logger),
	)

	// Search
	all = append(all,
		tools.NewAnswerTool(deps.Searcher, deps.Pages, counter, answerOpts...),
		tools.NewGitHubAnswerTool(deps.Searcher, deps.Readmes, counter, answerOpts...),
	)

	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database pool when one was opened.
func (d Deps) Close() error {
	if c, ok := d.DB.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
