package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/dusk-indust/quizflow/internal/agent"
	"github.com/dusk-indust/quizflow/internal/export"
	"github.com/dusk-indust/quizflow/internal/orchestrator"
	"github.com/dusk-indust/quizflow/internal/transcript"
)

// runDiagram prints the quiz workflow as a Mermaid flowchart. The graph
// shape does not depend on the agents, so canned ones are used.
func runDiagram(w io.Writer) error {
	coord, err := orchestrator.New(orchestrator.Agents{
		Downloader: agent.NewScriptedAgent(string(agent.RoleDownloader), nil),
		Generator:  agent.NewScriptedAgent(string(agent.RoleGenerator), nil),
		Presenter:  agent.NewScriptedAgent(string(agent.RolePresenter), nil),
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, export.GenerateMermaid(coord.Graph()))
	return err
}

var errNoTranscript = errors.New("no transcript store configured; set transcript.path or pass -transcript")

func openTranscript(path string) (*transcript.Store, error) {
	if path == "" {
		return nil, errNoTranscript
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no transcript found at %s", path)
	}
	return transcript.Open(path, nil)
}

// runSessions lists every session recorded in the transcript store.
func runSessions(ctx context.Context, path string, w io.Writer) error {
	store, err := openTranscript(path)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tEVENTS\tROUNDS\tSTATE")
	for _, s := range sessions {
		state := yellow.Sprint("incomplete")
		if s.Completed {
			state = green.Sprint("complete")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d/%d\t%s\n", s.SessionID, s.Events, s.Rounds, orchestrator.MaxRounds, state)
	}
	return tw.Flush()
}

// runTranscript prints the recorded events of one session, one per line.
func runTranscript(ctx context.Context, path, sessionID string, w io.Writer) error {
	store, err := openTranscript(path)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Events(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no events recorded for session %s", sessionID)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.CreatedAt.Format("15:04:05"), r.Kind, r.Source, summarize(r))
	}
	return tw.Flush()
}

// summarize renders the interesting part of a record on one line.
func summarize(r transcript.EventRecord) string {
	text := strings.TrimSpace(r.Text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " ..."
	}
	switch {
	case r.RequestID != "":
		return "request " + r.RequestID
	case r.Final:
		return "summary: " + text
	case r.Round > 0:
		return fmt.Sprintf("round %d: %s", r.Round, text)
	default:
		return fmt.Sprintf("%d chars", len(r.Text))
	}
}

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// quizflowMCPEntry is the MCP server configuration for the quizflow binary.
var quizflowMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "quizflow",
  "args": ["--serve-mcp"]
}`)

// runInit creates or merges the quizflow entry into dir/.mcp.json. Other
// servers in the file are preserved.
func runInit(dir string, w io.Writer) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}
	mcpPath := filepath.Join(abs, ".mcp.json")

	var cfg mcpConfig
	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", mcpPath, err)
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}
	if _, exists := cfg.MCPServers["quizflow"]; exists {
		fmt.Fprintln(w, "  skipped .mcp.json quizflow entry (exists)")
		return nil
	}
	cfg.MCPServers["quizflow"] = quizflowMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}
	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(w, "  %s .mcp.json with quizflow MCP server\n", action)
	return nil
}
