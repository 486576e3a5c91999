package orchestrator

import (
	"errors"
	"fmt"
)

// Edge is a directed connection between two executors.
type Edge struct {
	From string
	To   string
}

// Graph is an immutable, validated workflow graph. Messages sent by an
// executor are routed to every target of its outgoing edges.
type Graph struct {
	start     string
	output    string
	executors map[string]Executor
	order     []string // executor IDs in registration order
	edges     []Edge
	targets   map[string][]string
}

// Start returns the entry executor.
func (g *Graph) Start() Executor { return g.executors[g.start] }

// OutputID returns the ID of the executor whose output ends the workflow.
func (g *Graph) OutputID() string { return g.output }

// Executor returns the executor with the given ID.
func (g *Graph) Executor(id string) (Executor, bool) {
	e, ok := g.executors[id]
	return e, ok
}

// Executors returns executor IDs in registration order.
func (g *Graph) Executors() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns a copy of the graph's edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Targets returns the executors downstream of id.
func (g *Graph) Targets(id string) []Executor {
	ids := g.targets[id]
	out := make([]Executor, 0, len(ids))
	for _, t := range ids {
		out = append(out, g.executors[t])
	}
	return out
}

// GraphBuilder assembles a Graph. Errors are collected and reported by Build.
type GraphBuilder struct {
	start     Executor
	output    Executor
	executors map[string]Executor
	order     []string
	edges     []Edge
	errs      []error
}

// NewGraphBuilder starts a graph whose entry point is start.
func NewGraphBuilder(start Executor) *GraphBuilder {
	b := &GraphBuilder{
		start:     start,
		executors: make(map[string]Executor),
	}
	b.register(start)
	return b
}

func (b *GraphBuilder) register(e Executor) {
	if e == nil {
		b.errs = append(b.errs, errors.New("nil executor"))
		return
	}
	if existing, ok := b.executors[e.ID()]; ok {
		if existing != e {
			b.errs = append(b.errs, fmt.Errorf("duplicate executor id %q", e.ID()))
		}
		return
	}
	b.executors[e.ID()] = e
	b.order = append(b.order, e.ID())
}

// AddEdge connects from to to, registering both executors.
func (b *GraphBuilder) AddEdge(from, to Executor) *GraphBuilder {
	b.register(from)
	b.register(to)
	if from == nil || to == nil {
		return b
	}
	for _, e := range b.edges {
		if e.From == from.ID() && e.To == to.ID() {
			b.errs = append(b.errs, fmt.Errorf("duplicate edge %s -> %s", from.ID(), to.ID()))
			return b
		}
	}
	b.edges = append(b.edges, Edge{From: from.ID(), To: to.ID()})
	return b
}

// WithOutputFrom declares e as the executor whose yielded output ends the
// workflow.
func (b *GraphBuilder) WithOutputFrom(e Executor) *GraphBuilder {
	b.output = e
	return b
}

// Build validates the graph and returns it.
func (b *GraphBuilder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)
	if b.output == nil {
		errs = append(errs, errors.New("no output executor declared"))
	} else if _, ok := b.executors[b.output.ID()]; !ok {
		errs = append(errs, fmt.Errorf("output executor %q is not part of the graph", b.output.ID()))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("orchestrator: build graph: %w", errors.Join(errs...))
	}

	g := &Graph{
		start:     b.start.ID(),
		output:    b.output.ID(),
		executors: b.executors,
		order:     b.order,
		edges:     b.edges,
		targets:   make(map[string][]string, len(b.executors)),
	}
	for _, e := range b.edges {
		g.targets[e.From] = append(g.targets[e.From], e.To)
	}
	return g, nil
}
