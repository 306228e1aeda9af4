// Package engine drives blind introspection to a fixed point.
//
// The engine is a state machine. Each Step performs one transition:
//
//	Idle -> SelectingFrontier          roots resolved
//	Idle -> Probing                    seed document resolved
//	SelectingFrontier -> Probing       unexplored reachable type found
//	SelectingFrontier -> Converged     nothing left to explore
//	Probing -> Merging                 fragment collected
//	Merging -> SelectingFrontier       fragment merged and snapshot saved
//	any -> Failed                      fatal error or cancellation
//
// Iterations are strictly sequential: the next target is chosen only after
// the previous fragment is merged.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samwightt/gqlblind/pkg/logger"
	"github.com/samwightt/gqlblind/pkg/oracle"
	"github.com/samwightt/gqlblind/pkg/schema"
)

// State is the engine's position in the convergence loop.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateMerging
	StateSelectingFrontier
	StateConverged
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateMerging:
		return "merging"
	case StateSelectingFrontier:
		return "selecting-frontier"
	case StateConverged:
		return "converged"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether s is terminal.
func (s State) Done() bool {
	return s == StateConverged || s == StateFailed
}

// ErrUnreachable is returned when the endpoint does not answer the startup
// probe.
var ErrUnreachable = errors.New("endpoint unreachable")

// Prober is the part of *oracle.Oracle the engine uses.
type Prober interface {
	Probe(ctx context.Context, target oracle.Target, words []string) (*oracle.Fragment, error)
	ProbeTypename(ctx context.Context, doc string) (typeName string, input bool, err error)
	ProbeRoots(ctx context.Context) (map[schema.Operation]string, error)
}

// Options configures a run.
type Options struct {
	// Schema seeds the run. Explored types in it are not probed again. When
	// nil the run starts from an empty query root.
	Schema *schema.Schema
	// Document, when set, is probed first instead of the first unexplored
	// type. It must contain oracle.Placeholder exactly once.
	Document string
	// Sink receives a snapshot after every iteration.
	Sink   Sink
	Logger *logger.Logger
}

// Engine runs the convergence loop. It is not safe for concurrent use.
type Engine struct {
	prober   Prober
	words    []string
	document string
	sink     Sink
	log      *logger.Logger

	schema     *schema.Schema
	state      State
	err        error
	target     oracle.Target
	fragment   *oracle.Fragment
	ignored    map[string]bool
	unreached  map[string]bool
	iterations int
}

// New returns an engine in StateIdle.
func New(p Prober, words []string, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		prober:    p,
		words:     words,
		document:  opts.Document,
		sink:      opts.Sink,
		log:       log.With("component", "engine"),
		schema:    opts.Schema,
		state:     StateIdle,
		ignored:   map[string]bool{},
		unreached: map[string]bool{},
	}
}

// Run steps the engine until it converges or fails. The schema is returned
// in both cases; after a failure it holds everything merged so far.
func (e *Engine) Run(ctx context.Context) (*schema.Schema, error) {
	for !e.Step(ctx).Done() {
	}
	return e.schema, e.err
}

// Step performs one transition and returns the new state. Terminal states
// are returned unchanged.
func (e *Engine) Step(ctx context.Context) State {
	if e.state.Done() {
		return e.state
	}
	if err := ctx.Err(); err != nil {
		return e.fail(err)
	}

	switch e.state {
	case StateIdle:
		e.start(ctx)
	case StateSelectingFrontier:
		e.selectFrontier()
	case StateProbing:
		e.probe(ctx)
	case StateMerging:
		e.merge()
	}
	return e.state
}

func (e *Engine) start(ctx context.Context) {
	roots, err := e.prober.ProbeRoots(ctx)
	if err != nil {
		if ctx.Err() != nil {
			e.fail(ctx.Err())
			return
		}
		e.fail(fmt.Errorf("%w: %w", ErrUnreachable, err))
		return
	}

	if e.schema == nil {
		query := roots[schema.OperationQuery]
		if query == "" {
			query = "Query"
		}
		e.schema = schema.NewWithRoot(query)
	}
	for _, op := range []schema.Operation{schema.OperationQuery, schema.OperationMutation, schema.OperationSubscription} {
		if e.schema.Root(op) == "" && roots[op] != "" {
			e.schema.SetRoot(op, roots[op])
		}
	}
	e.log.Info("endpoint reachable", "query", e.schema.QueryType(),
		"mutation", e.schema.Root(schema.OperationMutation),
		"subscription", e.schema.Root(schema.OperationSubscription))

	if e.document == "" {
		e.state = StateSelectingFrontier
		return
	}

	name, input, err := e.prober.ProbeTypename(ctx, e.document)
	if err != nil {
		e.fail(fmt.Errorf("failed to resolve the seed document: %w", err))
		return
	}
	e.target = oracle.Target{TypeName: name, Document: e.document, Input: input}
	e.state = StateProbing
}

func (e *Engine) selectFrontier() {
	for {
		skip := make(map[string]bool, len(e.ignored)+len(e.unreached))
		for name := range e.ignored {
			skip[name] = true
		}
		for name := range e.unreached {
			skip[name] = true
		}

		name, ok := e.schema.NextUnexploredType(skip)
		if !ok {
			st := e.schema.Stats()
			e.log.Info("converged", "iterations", e.iterations, "types", st.Types,
				"fields", st.Fields, "arguments", st.Arguments, "unreachable", len(e.unreached))
			e.state = StateConverged
			return
		}

		path, ok := e.schema.PathFromRoot(name)
		if !ok {
			// A later iteration may discover a field leading here.
			e.log.Debug("no path to type", "type", name)
			e.unreached[name] = true
			continue
		}
		e.target = oracle.Target{
			TypeName: name,
			Document: path.Document(oracle.Placeholder),
			Input:    path.Input(),
		}
		e.log.Debug("next target", "type", name, "path", path.String())
		e.state = StateProbing
		return
	}
}

func (e *Engine) probe(ctx context.Context) {
	e.log.Info("probing", "type", e.target.TypeName, "document", e.target.Document)
	frag, err := e.prober.Probe(ctx, e.target, e.words)
	if err != nil {
		if ctx.Err() != nil {
			e.fail(ctx.Err())
			return
		}
		e.fail(fmt.Errorf("probing %s: %w", e.target.TypeName, err))
		return
	}
	e.fragment = frag
	e.state = StateMerging
}

func (e *Engine) merge() {
	facts := e.fragment.Facts()
	e.schema.MergeAll(facts)
	e.ignored[e.target.TypeName] = true
	clear(e.unreached)
	e.iterations++

	inconclusive := e.fragment.InconclusiveNames()
	e.fragment = nil
	if len(inconclusive) > 0 {
		e.log.Warn("inconclusive names", "type", e.target.TypeName, "count", len(inconclusive), "names", fmt.Sprint(inconclusive))
	}

	if e.sink != nil {
		if err := e.sink.Save(e.schema); err != nil {
			e.fail(fmt.Errorf("failed to save snapshot: %w", err))
			return
		}
	}

	st := e.schema.Stats()
	e.log.Info("iteration complete", "iteration", e.iterations, "type", e.target.TypeName,
		"facts", len(facts), "types", st.Types, "explored", st.Explored)
	e.state = StateSelectingFrontier
}

func (e *Engine) fail(err error) State {
	e.err = err
	e.state = StateFailed
	e.log.Error("run failed", "state", e.state, "err", err)
	return e.state
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Err returns the error that moved the engine to StateFailed.
func (e *Engine) Err() error {
	return e.err
}

// Schema returns the schema being built. It is nil before the first Step
// when no seed schema was given.
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Target returns the most recently selected probe target.
func (e *Engine) Target() oracle.Target {
	return e.target
}

// Iterations returns how many fragments have been merged.
func (e *Engine) Iterations() int {
	return e.iterations
}

// Ignored returns the types already probed, sorted.
func (e *Engine) Ignored() []string {
	out := make([]string, 0, len(e.ignored))
	for name := range e.ignored {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
