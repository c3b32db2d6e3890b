/*
Package convgraph provides graph-based orchestration for multi-turn
conversations.

# Overview

convgraph executes a directed graph of nodes over a shared conversation
state. Nodes return partial updates that are merged field by field through
a Schema; conditional edges route on the merged state; and the final state
of every turn is checkpointed under the conversation's id so the next turn
resumes where the last one ended.

Key properties:
  - Type-safe generics for state (S) and partial updates (U)
  - Per-field reducers and declared write sets for every node
  - Allow-listed conditional routing and first-class cycles
  - A per-turn step budget that bounds runaway loops
  - One checkpoint per completed turn, never a partial one
  - OpenTelemetry integration for observability

# Basic Usage

Define a state, an update and a schema, then build, compile and invoke:

	graph := convgraph.NewGraph[State, Update](Schema{}).
	    AddNode("reply", reply, convgraph.Writes("messages")).
	    AddEdge(convgraph.START, "reply").
	    AddEdge("reply", convgraph.END)

	compiled, err := graph.Compile(checkpoint.NewMemoryStore())
	if err != nil {
	    log.Fatal(err)
	}

	state, err := compiled.Invoke(ctx, "chat-1",
	    Update{Messages: []llm.Message{llm.User("hello")}},
	    convgraph.WithCapabilities(caps))

Builder methods never panic; Compile reports every defect at once as a
GraphConfigurationError.

# Conditional Routing

Routers read the state after the source node's update is merged and must
return one of the declared labels:

	graph.AddConditionalEdge("agent", func(ctx convgraph.Context, s State) string {
	    if s.LastMessage().HasToolCalls() {
	        return "tools"
	    }
	    return convgraph.END
	}, "tools", convgraph.END)

Any other label fails the step with a RoutingError, and the step's update
is discarded.

# Loops

Cycles are ordinary edges back to an earlier node. Each turn may execute at
most WithStepBudget nodes (default 25); exceeding it returns a
StepBudgetExceededError and, under Invoke, saves nothing.

# Checkpointing

Invoke loads the conversation's checkpoint, merges the caller's partial
update, runs the graph and saves the result as the next turn. Stores use
optimistic concurrency on the turn number, so a concurrent turn on the same
conversation fails with checkpoint.ErrConflict instead of overwriting.
Callers that may race should serialize turns with a checkpoint.Locker.

# Capabilities

Classifiers, generators and retrievers are passed per invocation with
WithCapabilities, falling back to WithDefaultCapabilities given at compile
time. Nodes reach them through Context.Capabilities.

# Observability

	state, err := compiled.Invoke(ctx, id, update,
	    convgraph.WithLogger(logger),
	    convgraph.WithMetrics(true),
	    convgraph.WithTracing(true))

Logs include structured fields: run_id, conversation_id, node_id, turn,
duration_ms. Metrics: convgraph.turn.count, convgraph.node.latency_ms, etc.
Tracing: convgraph.turn > convgraph.node.{id} spans.

# Error Handling

	var routeErr *convgraph.RoutingError
	if errors.As(err, &routeErr) {
	    log.Printf("router %s returned %q", routeErr.FromNode, routeErr.Returned)
	}

	if errors.Is(err, convgraph.ErrPersistence) {
	    // retry the turn once
	}

Panics in nodes are recovered and converted to PanicError with stack trace.

# Thread Safety

  - Graph is NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use (immutable)
  - checkpoint.Store implementations are safe for concurrent use

# Subpackages

  - capability: classifier, generator and retriever contracts
  - checkpoint: checkpoint stores (memory, SQLite, Postgres, Redis) and lockers
  - errors: error categories and retry helpers
  - llm: chat and embedding clients
  - observability: logging, metrics and tracing helpers
  - reducer: generic field reducers
*/
package convgraph
