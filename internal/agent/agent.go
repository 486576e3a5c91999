package agent

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Agent is a conversational text-generation agent. Every call is made on a
// Thread, which carries the multi-turn context for one caller.
type Agent interface {
	// Name returns the agent's display name.
	Name() string

	// NewThread returns a fresh, empty conversation thread for this agent.
	NewThread() *Thread

	// Run sends prompt on thread and returns the generated text. Failures are
	// reported as *InvocationError or *SchemaError.
	Run(ctx context.Context, thread *Thread, prompt string) (string, error)
}

// Closer is implemented by agents that hold resources which must be
// released when the agent is no longer needed.
type Closer interface {
	Close(ctx context.Context) error
}

// Factory builds agents from a Definition.
type Factory interface {
	Build(ctx context.Context, def Definition) (Agent, error)
}

// Role identifies one of the quiz pipeline agents.
type Role string

const (
	RoleDownloader Role = "downloader"
	RoleGenerator  Role = "generator"
	RolePresenter  Role = "presenter"
)

// Definition describes an agent to build: its instructions plus optional
// hosted tools and an optional structured output schema.
type Definition struct {
	Role         Role
	Name         string
	Instructions string
	Tools        []Tool
	OutputSchema *OutputSchema
}

// Tool is a hosted capability made available to the model.
type Tool struct {
	Name        string
	Description string
}

// ToolWebSearch is the hosted web search tool.
const ToolWebSearch = "web_search"

// WebSearchTool returns the hosted web search tool.
func WebSearchTool() Tool {
	return Tool{Name: ToolWebSearch, Description: "Search the web and read page content"}
}

// OutputSchema constrains an agent's response to a JSON document.
type OutputSchema struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Validate reports whether the definition can be built.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("agent: definition missing name")
	}
	if d.Instructions == "" {
		return fmt.Errorf("agent: definition %q missing instructions", d.Name)
	}
	if d.OutputSchema != nil && d.OutputSchema.Schema == nil {
		return fmt.Errorf("agent: definition %q has an output schema without a schema document", d.Name)
	}
	return nil
}
