package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/quizflow/internal/orchestrator"
)

// GenerateMermaid produces a Mermaid flowchart of a workflow graph. The
// entry executor is drawn as a stadium and the output executor with a double
// border.
func GenerateMermaid(g *orchestrator.Graph) string {
	// Mermaid node IDs must be alphanumeric.
	nodeIDs := make(map[string]string)
	getID := func(id string) string {
		if n, ok := nodeIDs[id]; ok {
			return n
		}
		n := fmt.Sprintf("N%d", len(nodeIDs))
		nodeIDs[id] = n
		return n
	}

	start := g.Start().ID()

	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	for _, id := range g.Executors() {
		label := id
		if e, ok := g.Executor(id); ok {
			if named, ok := e.(interface{ Name() string }); ok {
				label = fmt.Sprintf("%s (%s)", id, named.Name())
			}
		}
		switch id {
		case start:
			fmt.Fprintf(&sb, "  %s([\"%s\"])\n", getID(id), escape(label))
		case g.OutputID():
			fmt.Fprintf(&sb, "  %s[[\"%s\"]]\n", getID(id), escape(label))
		default:
			fmt.Fprintf(&sb, "  %s[\"%s\"]\n", getID(id), escape(label))
		}
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&sb, "  %s --> %s\n", getID(e.From), getID(e.To))
	}
	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
