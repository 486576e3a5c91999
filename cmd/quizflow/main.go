package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/quizflow/internal/agent"
	"github.com/dusk-indust/quizflow/internal/config"
	"github.com/dusk-indust/quizflow/internal/logger"
	"github.com/dusk-indust/quizflow/internal/orchestrator"
	"github.com/dusk-indust/quizflow/internal/transcript"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigDir    string
	Topic        string
	Offline      bool
	Verbose      bool
	ServeMCP     bool
	ServeMCPHTTP string
	ServeA2A     string
	Transcript   string
	Export       string
	Version      bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `Usage: quizflow [flags] [command]

Commands:
  (none)              run an interactive quiz in the terminal
  diagram             print the workflow graph as a Mermaid flowchart
  sessions            list sessions recorded in the transcript store
  transcript <id>     print the recorded events of one session
  init [dir]          register quizflow as an MCP server in dir/.mcp.json

Flags:
`

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("quizflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&flags.ConfigDir, "config-dir", ".", "directory holding quizflow.yml, quizflow.toml and .env")
	fs.StringVar(&flags.Topic, "topic", "", "quiz topic; prompts when empty")
	fs.BoolVar(&flags.Offline, "offline", false, "use canned agents instead of a model service")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.StringVar(&flags.ServeMCPHTTP, "serve-mcp-http", "", "run as MCP server over streamable HTTP on `addr`")
	fs.StringVar(&flags.ServeA2A, "serve-a2a", "", "run as A2A agent on `addr`")
	fs.StringVar(&flags.Transcript, "transcript", "", "SQLite transcript `path`; overrides transcript.path")
	fs.StringVar(&flags.Export, "export", "", "write the finished session as JSON to `path`")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if flags.Version {
		fmt.Fprintln(stdout, version)
		return nil
	}

	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return err
	}
	if flags.Transcript != "" {
		cfg.Transcript.Path = flags.Transcript
	}

	level := cfg.Logging.Level
	if flags.Verbose {
		level = "debug"
	}
	// stdout carries MCP frames in stdio mode, so logs always go to stderr.
	log := logger.Init(level, cfg.Logging.Format, stderr)

	if rest := fs.Args(); len(rest) > 0 {
		return runCommand(ctx, cfg, rest, stdout)
	}

	app, err := newApp(ctx, cfg, flags.Offline, log)
	if err != nil {
		return err
	}
	defer app.close()

	if flags.ServeMCP || flags.ServeMCPHTTP != "" || flags.ServeA2A != "" {
		return app.serve(ctx, serveOptions{
			stdio:   flags.ServeMCP,
			mcpHTTP: flags.ServeMCPHTTP,
			a2aAddr: flags.ServeA2A,
		})
	}

	con := newConsole(stdin, stdout)
	topic := flags.Topic
	if topic == "" {
		if topic, err = con.askTopic(cfg.Quiz.DefaultTopic); err != nil {
			return err
		}
	}
	return app.playConsole(ctx, con, topic, flags.Export)
}

func runCommand(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	switch args[0] {
	case "diagram":
		return runDiagram(stdout)
	case "sessions":
		return runSessions(ctx, cfg.Transcript.Path, stdout)
	case "transcript":
		if len(args) < 2 {
			return errors.New("usage: quizflow transcript <session-id>")
		}
		return runTranscript(ctx, cfg.Transcript.Path, args[1], stdout)
	case "init":
		dir := "."
		if len(args) > 1 {
			dir = args[1]
		}
		return runInit(dir, stdout)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// app holds the long-lived pieces shared by the console and the servers.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	orch   *orchestrator.Service
	store  *transcript.Store
}

func newApp(ctx context.Context, cfg *config.Config, offline bool, log *slog.Logger) (*app, error) {
	if log == nil {
		log = slog.Default()
	}

	var factory agent.Factory
	if offline {
		factory = agent.OfflineFactory()
	} else {
		factory = agent.NewChatFactory(cfg.ChatConfig(), agent.WithLogger(log))
	}

	a := &app{cfg: cfg, logger: log}
	opts := []orchestrator.Option{orchestrator.WithLogger(log)}
	if cfg.Transcript.Path != "" {
		store, err := transcript.Open(cfg.Transcript.Path, log)
		if err != nil {
			return nil, err
		}
		a.store = store
		opts = append(opts, orchestrator.WithObserver(store.Observe))
	}

	a.orch = orchestrator.NewService(factory, opts...)
	if err := a.orch.Initialize(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if err := a.orch.Cleanup(context.Background()); err != nil {
		a.logger.Warn("agent cleanup failed", "error", err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("transcript close failed", "error", err)
		}
	}
}
