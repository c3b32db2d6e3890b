package convgraph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/observability"
)

// turnInfo identifies the turn being produced.
type turnInfo struct {
	conversationID string
	number         int
}

// Run executes one turn over an explicit state, without touching the
// checkpoint store. Returns the final state and any error encountered.
//
// On success, returns the state after the last node executed before END.
// On error, returns the last committed state: the update of a step that
// failed validation or routing is never applied.
//
// Execution flow:
//  1. Start at the entry node (or the conditional entry's label)
//  2. Check for cancellation
//  3. Execute the node and validate its update against Writes
//  4. Merge the update into a tentative state
//  5. Route on the tentative state; commit it only if routing succeeds
//  6. Repeat until END is reached or the step budget is spent
//
// Example:
//
//	result, err := compiled.Run(ctx, state, convgraph.WithCapabilities(caps))
func (cg *CompiledGraph[S, U]) Run(ctx context.Context, state S, opts ...RunOption) (S, error) {
	if ctx == nil {
		return state, ErrNilContext
	}
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cg.runTurn(ctx, state, turnInfo{}, &cfg)
}

// runTurn wraps execution with turn-level logging, metrics and tracing.
func (cg *CompiledGraph[S, U]) runTurn(ctx context.Context, state S, t turnInfo, cfg *runConfig) (result S, runErr error) {
	runID := cfg.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	if cfg.visited != nil {
		*cfg.visited = (*cfg.visited)[:0]
	}

	ec := &executionContext{
		Context:        ctx,
		base:           cfg.logger,
		conversationID: t.conversationID,
		runID:          runID,
		turn:           t.number,
		caps:           cg.defaults.Merge(cfg.caps),
	}
	ec.logger = ec.enrich()

	entry := cg.entry
	if cg.entryRouter != nil {
		entry = START
	}
	elapsed := observability.TimedOperation()
	observability.LogTurnStart(ec.logger, entry)

	tracingCtx, span := cfg.spans.StartTurnSpan(ctx, cg.name, t.conversationID, runID)
	defer func() {
		cfg.spans.EndSpanWithError(span, runErr)
	}()

	var steps int
	var lastNode string
	result, steps, lastNode, runErr = cg.execute(tracingCtx, ec, state, cfg)

	durationMs := elapsed()
	cfg.metrics.RecordTurn(tracingCtx, turnOutcome(runErr), time.Duration(durationMs*float64(time.Millisecond)), steps)
	if runErr != nil {
		observability.LogTurnError(ec.logger, runErr, durationMs, lastNode)
	} else {
		observability.LogTurnComplete(ec.logger, durationMs, steps)
	}
	return result, runErr
}

// execute is the step loop. It returns the committed state, the number of
// node executions and the last node attempted.
func (cg *CompiledGraph[S, U]) execute(tracingCtx context.Context, ec *executionContext, state S, cfg *runConfig) (S, int, string, error) {
	current := cg.entry
	if cg.entryRouter != nil {
		next, err := cg.route(ec, START, cg.entryRouter, state)
		if err != nil {
			return state, 0, START, err
		}
		observability.LogRoute(ec.logger, START, next)
		current = next
	}

	steps := 0
	lastNode := ""
	for current != END {
		if steps >= cfg.stepBudget {
			return state, steps, lastNode, &StepBudgetExceededError{
				Budget:     cfg.stepBudget,
				LastNodeID: current,
				State:      state,
			}
		}

		// Cancellation is honoured between steps only.
		if err := tracingCtx.Err(); err != nil {
			return state, steps, lastNode, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  err,
			}
		}

		steps++
		lastNode = current
		if cfg.visited != nil {
			*cfg.visited = append(*cfg.visited, current)
		}

		next, tentative, err := cg.step(tracingCtx, ec, cfg, current, steps, state)
		if err != nil {
			return state, steps, lastNode, err
		}
		state = tentative
		current = next
	}

	return state, steps, lastNode, nil
}

// step executes one node, validates and merges its update, and routes.
// The returned state is only meaningful when err is nil.
func (cg *CompiledGraph[S, U]) step(tracingCtx context.Context, ec *executionContext, cfg *runConfig, nodeID string, stepNum int, state S) (string, S, error) {
	n, ok := cg.nodes[nodeID]
	if !ok {
		return "", state, &NodeError{NodeID: nodeID, Op: "lookup", Err: fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)}
	}

	observability.LogNodeStart(ec.logger, nodeID, stepNum)
	nodeTracingCtx, span := cfg.spans.StartNodeSpan(tracingCtx, nodeID, stepNum)
	nodeCtx := ec.withNode(nodeTracingCtx, nodeID)
	start := time.Now()

	update, err := cg.executeNode(nodeCtx, n, state)
	var fields []string
	if err == nil {
		fields, err = cg.validateUpdate(nodeID, n.meta, update)
	}

	duration := time.Since(start)
	cfg.metrics.RecordNodeExecution(nodeTracingCtx, nodeID, duration, err)
	cfg.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogNodeError(nodeCtx.logger, nodeID, err)
		return "", state, err
	}
	observability.LogNodeComplete(nodeCtx.logger, nodeID, float64(duration.Microseconds())/1000, fields)

	tentative := cg.schema.Merge(state, update)

	next, err := cg.nextNode(nodeCtx, nodeID, tentative)
	if err != nil {
		return "", state, err
	}
	cfg.spans.AddSpanEvent(tracingCtx, "route", attribute.String("from", nodeID), attribute.String("to", next))
	observability.LogRoute(nodeCtx.logger, nodeID, next)
	return next, tentative, nil
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph[S, U]) executeNode(ctx Context, n *node[S, U], state S) (update U, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero U
			update = zero
			err = &PanicError{
				NodeID: n.id,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	update, err = n.fn(ctx, state)
	if err != nil {
		return update, &NodeError{NodeID: n.id, Op: "execute", Err: err}
	}
	return update, nil
}

// validateUpdate checks the update's shape and that every field it names
// was declared with Writes. Returns the fields present.
func (cg *CompiledGraph[S, U]) validateUpdate(nodeID string, meta nodeMeta, update U) ([]string, error) {
	fields, err := cg.schema.Fields(update)
	if err != nil {
		return nil, &MalformedUpdateError{NodeID: nodeID, Err: err}
	}
	var undeclared []string
	for _, f := range fields {
		if !meta.writes[f] {
			undeclared = append(undeclared, f)
		}
	}
	if len(undeclared) > 0 {
		return nil, &MalformedUpdateError{NodeID: nodeID, Fields: undeclared}
	}
	return fields, nil
}

// nextNode determines the next node from the tentative state.
func (cg *CompiledGraph[S, U]) nextNode(ctx Context, current string, state S) (string, error) {
	if c, ok := cg.conditional[current]; ok {
		return cg.route(ctx, current, c, state)
	}
	if to, ok := cg.edges[current]; ok {
		return to, nil
	}
	// Compile guarantees an outgoing edge; this is unreachable for
	// compiled graphs.
	return "", &NodeError{NodeID: current, Op: "routing", Err: ErrNoOutgoingEdge}
}

// route calls a router and checks its label against the allow-list.
func (cg *CompiledGraph[S, U]) route(ctx Context, from string, c *conditional[S], state S) (string, error) {
	next := c.router(ctx, state)
	if next == "" {
		return "", &RoutingError{FromNode: from, Returned: next, Allowed: c.allowed, Err: ErrInvalidRouterResult}
	}
	if !c.allows(next) {
		return "", &RoutingError{FromNode: from, Returned: next, Allowed: c.allowed, Err: ErrRouteNotAllowed}
	}
	return next, nil
}

func turnOutcome(err error) string {
	var cancelErr *CancellationError
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, ErrStepBudgetExceeded):
		return observability.OutcomeBudget
	case errors.As(err, &cancelErr):
		return observability.OutcomeCancelled
	default:
		return observability.OutcomeError
	}
}
