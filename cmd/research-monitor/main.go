package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/config"
	"github.com/research-assistant/monitor/internal/logger"
	"github.com/research-assistant/monitor/internal/markdown"
	"github.com/research-assistant/monitor/internal/monitor"
)

// Exit codes beyond the generic failure.
const (
	exitUnavailable = 2
	exitPipeline    = 3
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	config    string
	envFile   string
	url       string
	token     string
	transport string
	logFile   string
	debug     bool
	noTUI     bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "research-monitor",
	Short:         "Follow research sessions live and collect their results",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "YAML config file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded into the environment")
	pf.StringVar(&flags.url, "url", "", "base URL of the research server")
	pf.StringVar(&flags.token, "token", "", "bearer token (if the server requires it)")
	pf.StringVar(&flags.transport, "transport", "", "live transport: sse or websocket")
	pf.StringVar(&flags.logFile, "log-file", "", "log file used while the TUI is running")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&flags.noTUI, "no-tui", false, "print plain lines instead of the TUI")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var (
		unavailable *monitor.ResultUnavailableError
		pipeline    *monitor.PipelineError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &pipeline):
		return exitPipeline
	case errors.As(err, &unavailable):
		return exitUnavailable
	}
	return 1
}

// resolveConfig layers defaults, the YAML file, the dotenv file, the
// environment and finally any flag the user set explicitly.
func resolveConfig(f globalFlags, changed func(string) bool, lookup func(string) (string, bool)) (*config.Config, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv(lookup)

	if changed("url") {
		cfg.Server.BaseURL = f.url
	}
	if changed("token") {
		cfg.Server.Token = f.token
	}
	if changed("transport") {
		cfg.Stream.Transport = f.transport
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if f.debug {
		cfg.Log.Level = "debug"
	}
	if f.noTUI {
		cfg.UI.NoTUI = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return resolveConfig(flags, cmd.Flags().Changed, os.LookupEnv)
}

// setupLogging sends logs to a file while the TUI owns the terminal and to
// stderr otherwise.
func setupLogging(cfg *config.Config, tui bool) error {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if !tui {
		logger.InitWriter(os.Stderr)
		return nil
	}
	path := cfg.Log.File
	if path == "" {
		path = logger.DefaultLogPath()
	}
	return logger.Init(path)
}

// services holds the collaborators built from the resolved config.
type services struct {
	cfg    *config.Config
	http   *client.HTTPClient
	dialer client.Dialer
	md     *markdown.Renderer
}

func newServices(cfg *config.Config) (*services, error) {
	hc := client.NewHTTPClient(cfg.Server.BaseURL, cfg.Server.Token, cfg.Server.Timeout)
	dialer, err := client.NewDialer(client.Transport(cfg.Stream.Transport), hc, cfg.Server.Token)
	if err != nil {
		return nil, err
	}
	md, err := markdown.New(cfg.UI.MarkdownStyle, cfg.UI.WordWrap)
	if err != nil {
		slog.Warn("markdown renderer unavailable, showing plain reports", "error", err)
		md = nil
	}
	return &services{cfg: cfg, http: hc, dialer: dialer, md: md}, nil
}

func (s *services) fetcher() *monitor.Fetcher {
	return &monitor.Fetcher{
		Source:      s.http,
		MaxAttempts: s.cfg.Fetch.MaxAttempts,
		RetryDelay:  s.cfg.Fetch.RetryDelay,
		Logger:      logger.WithComponent("fetcher"),
	}
}

func (s *services) monitor(sessionID string) *monitor.Monitor {
	return monitor.New(sessionID, monitor.Deps{
		Dialer:  s.dialer,
		Fetcher: s.fetcher(),
	}, monitor.Options{
		GraceInterval: s.cfg.Stream.GraceInterval,
		Logger:        logger.WithSession(sessionID),
	})
}
