// Package router dispatches named capability requests from the interaction
// layer to one of three paths: a context-cache read, a persistence-queue
// write, or a delegated reasoning call. The dispatch table is fixed at
// construction; there is no runtime registration.
package router

import "context"

// LatencyClass declares a capability's performance contract.
type LatencyClass string

const (
	// LatencyCacheRead handlers complete from the in-memory snapshot only.
	// Touching storage or the network from one is a design bug.
	LatencyCacheRead LatencyClass = "cache_read"

	// LatencyQueueWrite handlers enqueue and confirm before durability.
	LatencyQueueWrite LatencyClass = "queue_write"

	// LatencyDelegated handlers block on the reasoning subsystem, bounded
	// by the delegation timeout.
	LatencyDelegated LatencyClass = "delegated"
)

// HandlerFunc executes one capability invocation and returns the spoken reply.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Capability defines one invokable operation.
type Capability struct {
	// Name is the unique identifier the interaction layer invokes.
	Name string

	// Description explains what the capability does, for the LLM tool layer.
	Description string

	// Latency declares the performance contract.
	Latency LatencyClass

	// Required lists argument keys that must be present.
	Required []string

	// Handler executes the capability.
	Handler HandlerFunc
}

// Validate checks the capability definition.
func (c *Capability) Validate() error {
	if c.Name == "" {
		return ErrCapabilityNameEmpty
	}
	if c.Handler == nil {
		return ErrCapabilityHandlerNil
	}
	return nil
}

// Result wraps one invocation's outcome with metadata.
type Result struct {
	// Capability identifies what was invoked.
	Capability string

	// Latency is the declared class of the invoked capability.
	Latency LatencyClass

	// Reply is the user-facing text output.
	Reply string

	// DurationMs is how long the invocation took.
	DurationMs int64
}
