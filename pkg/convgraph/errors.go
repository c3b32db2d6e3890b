package convgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNilSchema indicates NewGraph was called without a schema.
	ErrNilSchema = errors.New("schema cannot be nil")

	// ErrNoEntryPoint indicates no entry was set before Compile.
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrMultipleEntryPoints indicates more than one entry was set.
	ErrMultipleEntryPoints = errors.New("more than one entry point")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrInvalidNode indicates a bad node id, a nil function or an unknown
	// Writes field.
	ErrInvalidNode = errors.New("invalid node")

	// ErrDuplicateNode indicates two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrAmbiguousEdge indicates a node has more than one outgoing route.
	ErrAmbiguousEdge = errors.New("ambiguous outgoing edges")

	// ErrNoOutgoingEdge indicates a node has nowhere to go.
	ErrNoOutgoingEdge = errors.New("no outgoing edge")

	// ErrEmptyAllowList indicates a conditional edge without allowed labels.
	ErrEmptyAllowList = errors.New("conditional edge has empty allow-list")

	// ErrTerminalNode indicates a terminal node that does not edge into END.
	ErrTerminalNode = errors.New("terminal node must edge to END")

	// ErrNoPathToEnd indicates a reachable node from which END cannot be reached.
	ErrNoPathToEnd = errors.New("no path to END")
)

// Sentinel errors for execution.
var (
	// ErrMalformedUpdate indicates a node returned an update it may not write.
	ErrMalformedUpdate = errors.New("malformed update")

	// ErrRouteNotAllowed indicates a router returned a label outside its allow-list.
	ErrRouteNotAllowed = errors.New("route not in allow-list")

	// ErrInvalidRouterResult indicates a router returned an empty label.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrStepBudgetExceeded indicates a turn ran more node executions than allowed.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrPersistence indicates a checkpoint could not be loaded or saved.
	ErrPersistence = errors.New("persistence failure")

	// ErrNilContext indicates Run or Invoke was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNoConversationID indicates Invoke was called without a conversation id.
	ErrNoConversationID = errors.New("conversation id required")
)

// CapabilityError is the error returned when a classifier, generator or
// retriever fails. Match it with errors.As or errors.Is(err, capability.ErrCapability).
type CapabilityError = capability.Error

// GraphConfigurationError reports every structural defect found by Compile.
type GraphConfigurationError struct {
	Errs []error
}

// Error implements the error interface.
func (e *GraphConfigurationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "graph configuration: " + strings.Join(msgs, "; ")
}

// Unwrap returns the individual defects for errors.Is/As support.
func (e *GraphConfigurationError) Unwrap() []error {
	return e.Errs
}

// MalformedUpdateError is returned when a node's update fails shape
// validation or names fields the node did not declare with Writes.
type MalformedUpdateError struct {
	// NodeID is the node that produced the update, or START for the
	// caller's partial update.
	NodeID string
	// Fields lists the undeclared fields, if any.
	Fields []string
	// Err is the shape error from the schema, if any.
	Err error
}

// Error implements the error interface.
func (e *MalformedUpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed update from %s: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("malformed update from %s: undeclared fields %v", e.NodeID, e.Fields)
}

// Unwrap returns the shape error.
func (e *MalformedUpdateError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedUpdate.
func (e *MalformedUpdateError) Is(target error) bool {
	return target == ErrMalformedUpdate
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports that the context was cancelled between steps.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// State is the committed state at cancellation.
	State any
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RoutingError reports a router result that is empty or not allowed.
// The step that produced it is discarded.
type RoutingError struct {
	// FromNode is the node with the conditional edge, or START.
	FromNode string
	// Returned is the value the router returned.
	Returned string
	// Allowed is the declared allow-list.
	Allowed []string
	// Err is ErrRouteNotAllowed or ErrInvalidRouterResult.
	Err error
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("router from %s returned %q (allowed %v): %v", e.FromNode, e.Returned, e.Allowed, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// StepBudgetExceededError reports a turn that ran out of steps.
// It includes the committed state at termination for inspection.
type StepBudgetExceededError struct {
	// Budget is the configured step budget.
	Budget int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
	// State is the state at termination (type-assert to the actual type).
	State any
}

// Error implements the error interface.
func (e *StepBudgetExceededError) Error() string {
	return fmt.Sprintf("exceeded step budget (%d) at node %s", e.Budget, e.LastNodeID)
}

// Unwrap returns ErrStepBudgetExceeded for errors.Is support.
func (e *StepBudgetExceededError) Unwrap() error {
	return ErrStepBudgetExceeded
}

// PersistenceError wraps a checkpoint load, decode, encode or save failure.
type PersistenceError struct {
	ConversationID string
	// Op is "load", "decode", "encode", "save" or "delete".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s for %s: %v", e.Op, e.ConversationID, e.Err)
}

// Unwrap returns the underlying store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
