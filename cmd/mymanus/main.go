package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/agent"
	"github.com/xiaokk2024/mymanus1/config"
	"github.com/xiaokk2024/mymanus1/internal/toolinit"
	"github.com/xiaokk2024/mymanus1/tui"
)

var (
	// Flags
	configFile   string
	resume       string
	outputFormat string

	v = config.New()

	rootCmd = &cobra.Command{
		Use:           "mymanus",
		Short:         "Conversational agent with code, SQL and web research tools",
		Long:          "MyManus lets a language model call Python, plotting, SQL and web search tools until it can answer, with a two-phase research mode.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMenu,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}

	researchCmd = &cobra.Command{
		Use:   "research [question]",
		Short: "Run a research task and save the report",
		RunE:  runResearch,
	}

	queryCmd = &cobra.Command{
		Use:   "query [message]",
		Short: "Send a one-shot query and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "Tool management commands",
	}

	listToolsCmd = &cobra.Command{
		Use:   "list",
		Short: "List available tools",
		Args:  cobra.NoArgs,
		RunE:  listTools,
	}

	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Saved conversation commands",
	}

	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}

	deleteSessionsCmd = &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete saved conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  deleteSessions,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ~/.mymanus/config.yaml)")
	flags.String("model", "", "model name (overrides MODEL)")
	flags.String("base-url", "", "completion endpoint base URL (overrides BASE_URL)")
	flags.Int("max-iterations", 0, "maximum completion rounds per turn")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.StringVarP(&resume, "resume", "r", "", "resume a saved conversation: an ID, 'last', or no value for a picker")
	flags.Lookup("resume").NoOptDefVal = "pick"

	_ = v.BindPFlag(config.KeyModel, flags.Lookup("model"))
	_ = v.BindPFlag(config.KeyBaseURL, flags.Lookup("base-url"))
	_ = v.BindPFlag(config.KeyVerbose, flags.Lookup("verbose"))

	for _, c := range []*cobra.Command{listToolsCmd, listSessionsCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
	}

	rootCmd.AddCommand(chatCmd, researchCmd, queryCmd, toolsCmd, sessionsCmd)
	toolsCmd.AddCommand(listToolsCmd)
	sessionsCmd.AddCommand(listSessionsCmd, deleteSessionsCmd)
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves and validates the configuration. Only the
// max-iterations flag is applied by hand: zero means "not given".
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if n, _ := cmd.Flags().GetInt("max-iterations"); n > 0 {
		cfg.MaxIterations = n
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMenu(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	status := app.status()
	for {
		choice, err := tui.RunMenu("MyManus", status, app.styles)
		if err != nil {
			return err
		}

		status = ""
		switch choice {
		case tui.ChoiceChat:
			if err := app.shell.Chat(ctx); err != nil {
				status = "Chat ended: " + err.Error()
			}
		case tui.ChoiceResearch:
			report, err := app.shell.Research(ctx, "")
			switch {
			case err == nil && report.Path != "":
				status = "Report saved to " + report.Path
			case errors.Is(err, agent.ErrResearchAborted):
				status = "Research task cancelled."
			case err != nil:
				status = "Research failed: " + err.Error()
			}
		case tui.ChoiceClear:
			if err := app.shell.Clear(); err != nil {
				return err
			}
			status = "Conversation cleared."
		default:
			return nil
		}
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if s := app.status(); s != "" {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return app.shell.Chat(cmd.Context())
}

func runResearch(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer app.Close()

	_, err = app.shell.Research(cmd.Context(), strings.Join(args, " "))
	if errors.Is(err, agent.ErrResearchAborted) {
		return nil
	}
	return err
}

func runQuery(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer app.Close()

	events, err := app.agent.QueryStream(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	out := cmd.OutOrStdout()
	var answered bool
	var lastErr error
	for ev := range events {
		switch ev.Type {
		case agent.EventTypeComplete:
			answered = true
			fmt.Fprintln(out, app.renderer.Markdown(ev.Content))
		case agent.EventTypeError:
			lastErr = ev.Error
		case agent.EventTypeToolStart, agent.EventTypeToolResult:
			if app.cfg.Verbose {
				app.shell.HandleEvent(ev)
			}
		}
	}

	// A history save failure after the answer is only a warning.
	if lastErr != nil && !answered {
		return fmt.Errorf("query failed: %w", lastErr)
	}
	if lastErr != nil {
		app.logger.Warn("query finished with an error", zap.Error(lastErr))
	}
	return nil
}

func listTools(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry(toolinit.Deps{Logger: nopLogger()})
	if err != nil {
		return err
	}
	return printTools(cmd.OutOrStdout(), outputFormat, toolInfos(reg))
}

func listSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	manager, closeStore, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := manager.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	return printSessions(cmd.OutOrStdout(), outputFormat, sessions)
}

func deleteSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	manager, closeStore, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return removeSessions(cmd.OutOrStdout(), manager, args)
}
