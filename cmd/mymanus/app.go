package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/agent"
	"github.com/xiaokk2024/mymanus1/config"
	"github.com/xiaokk2024/mymanus1/history"
	"github.com/xiaokk2024/mymanus1/internal/report"
	"github.com/xiaokk2024/mymanus1/internal/store"
	"github.com/xiaokk2024/mymanus1/internal/toolinit"
	"github.com/xiaokk2024/mymanus1/llm"
	"github.com/xiaokk2024/mymanus1/llm/openai"
	"github.com/xiaokk2024/mymanus1/tools/registry"
	"github.com/xiaokk2024/mymanus1/tui"
	"github.com/xiaokk2024/mymanus1/tui/styles"
)

const probeTimeout = 15 * time.Second

// app holds everything one command run needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.BoltStore
	client   llm.Client
	deps     toolinit.Deps
	agent    *agent.HistoryAgent
	shell    *tui.Shell
	styles   *styles.Styles
	renderer *tui.Renderer
	notices  []string
}

func newApp(cmd *cobra.Command, interactive bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.init(cmd.Context(), interactive); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, interactive bool) error {
	cfg := a.cfg

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return err
	}
	a.store = st

	client, err := openai.NewClient(
		llm.WithAPIKey(cfg.APIKey),
		llm.WithBaseURL(cfg.BaseURL),
		llm.WithModel(cfg.Model),
	)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	a.client = client
	a.probe(ctx)

	a.deps = toolinit.NewDeps(ctx, toolinit.Settings{
		DB:              cfg.Database,
		GoogleAPIKey:    cfg.Search.GoogleAPIKey,
		CSEID:           cfg.Search.CSEID,
		GitHubToken:     cfg.GitHub.Token,
		SearchCookie:    cfg.Search.Cookie,
		SearchUserAgent: cfg.Search.UserAgent,
		Proxy:           cfg.Proxy,
		FigureDir:       cfg.FigureDir,
	}, st, a.logger)
	reg, err := newRegistry(a.deps)
	if err != nil {
		return err
	}

	a.styles = styles.NewStyles(styles.DefaultTheme)
	a.renderer = tui.NewRenderer(a.styles, 0)
	a.shell = tui.NewShell(tui.TeaInput{Styles: a.styles}, os.Stdout, a.styles, a.logger)

	opts := []agent.Option{
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithTimeout(cfg.Timeout),
		agent.WithVerbose(cfg.Verbose),
		agent.WithLogger(a.logger),
		agent.WithSaver(report.NewSaver(cfg.ReportDir, a.logger)),
	}
	if interactive {
		opts = append(opts, agent.WithEventHandler(a.shell.HandleEvent))
	}

	manager := history.NewManager(st)
	session, err := a.resolveSession(manager)
	if err != nil {
		return err
	}

	a.agent = agent.NewHistoryAgent(agent.New(client, reg, opts...), manager, session, a.logger)
	if len(session.Messages) > 0 {
		a.agent.RestoreMemoryFromSession(session)
		a.notices = append(a.notices, fmt.Sprintf("Resumed %q (%d messages)", session.Metadata.Title, len(session.Messages)))
	}
	a.shell.Attach(a.agent)
	return nil
}

// probe warns when the endpoint does not list the configured model.
// Failures are not fatal: some endpoints do not implement the models API.
func (a *app) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	result, err := agent.ProbeModel(ctx, a.client, a.cfg.Model)
	if err != nil {
		a.logger.Warn("could not list models", zap.Error(err))
		return
	}
	if !result.Found {
		a.logger.Warn("configured model not offered by endpoint",
			zap.String("model", result.Model),
			zap.Strings("available", result.Available))
		a.notices = append(a.notices, fmt.Sprintf("Model %s is not listed by %s", result.Model, a.cfg.BaseURL))
	}
}

// resolveSession maps --resume to a session: empty starts a new one,
// "last" loads the most recent, "pick" opens the picker, anything else is
// an ID.
func (a *app) resolveSession(manager *history.Manager) (*history.Session, error) {
	fresh := func() *history.Session {
		return manager.StartSession(a.cfg.Model, a.cfg.BaseURL)
	}

	switch resume {
	case "":
		return fresh(), nil
	case "last":
		session, err := manager.LastSession()
		if errors.Is(err, history.ErrNoSessions) {
			return fresh(), nil
		}
		return session, err
	case "pick":
		sessions, err := manager.ListSessions()
		if err != nil {
			return nil, err
		}
		id, err := tui.PickSession(sessions, a.styles)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return fresh(), nil
		}
		return manager.LoadSession(id)
	default:
		return manager.LoadSession(resume)
	}
}

func (a *app) status() string {
	if len(a.notices) == 0 {
		return ""
	}
	return a.notices[len(a.notices)-1]
}

// Close releases the store, the database pool and the client.
func (a *app) Close() {
	if err := a.deps.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func newRegistry(deps toolinit.Deps) (*registry.Registry, error) {
	reg := registry.New(registry.WithLogger(deps.Logger))
	if err := toolinit.RegisterAll(reg, deps); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return reg, nil
}

func openHistory(cfg *config.Config) (*history.Manager, func(), error) {
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, nil, err
	}
	return history.NewManager(st), func() { _ = st.Close() }, nil
}

// removeSessions deletes each session and reports the outcome per ID. A
// missing ID does not stop the others.
func removeSessions(w io.Writer, manager *history.Manager, ids []string) error {
	var failed int
	for _, id := range ids {
		err := manager.DeleteSession(id)
		switch {
		case err == nil:
			fmt.Fprintf(w, "Deleted session %s\n", id)
		case errors.Is(err, store.ErrNotFound):
			fmt.Fprintf(w, "No session %s\n", id)
			failed++
		default:
			fmt.Fprintf(w, "Failed to delete session %s: %v\n", id, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sessions not deleted", failed, len(ids))
	}
	return nil
}

// newLogger returns a development logger when verbose, otherwise a
// production logger that only reports warnings and above.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		return logger, nil
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	zc.Encoding = "console"
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
