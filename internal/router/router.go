package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"voicecoach/internal/logging"
)

// Router is the fixed capability dispatch table. It is immutable after New;
// concurrent Invoke calls need no locking.
type Router struct {
	caps map[string]*Capability
}

// New builds a router from a fixed capability set.
func New(caps []Capability) (*Router, error) {
	table := make(map[string]*Capability, len(caps))
	for i := range caps {
		c := caps[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid capability %q: %w", c.Name, err)
		}
		if _, exists := table[c.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCapability, c.Name)
		}
		table[c.Name] = &c
	}

	logging.RouterDebug("Router built with %d capabilities", len(table))
	return &Router{caps: table}, nil
}

// Has reports whether a capability with the given name exists.
func (r *Router) Has(name string) bool {
	_, ok := r.caps[name]
	return ok
}

// Names returns all capability names, sorted.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the capability definition for the LLM tool layer, or nil.
func (r *Router) Describe(name string) *Capability {
	return r.caps[name]
}

// Invoke runs a capability by name. Unknown names and missing required
// arguments yield typed errors; a failure in one invocation never affects
// concurrently in-flight or subsequent calls.
func (r *Router) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	capability, ok := r.caps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}

	for _, key := range capability.Required {
		if _, present := args[key]; !present {
			return nil, fmt.Errorf("%w: %s (capability %s)", ErrMissingRequiredArg, key, name)
		}
	}

	start := time.Now()
	logging.RouterDebug("Invoking %s (latency=%s)", name, capability.Latency)

	reply, err := capability.Handler(ctx, args)
	elapsed := time.Since(start)

	if err != nil {
		logging.RouterDebug("Capability %s failed in %v: %v", name, elapsed, err)
		return nil, err
	}

	logging.RouterDebug("Capability %s completed in %v", name, elapsed)
	return &Result{
		Capability: name,
		Latency:    capability.Latency,
		Reply:      reply,
		DurationMs: elapsed.Milliseconds(),
	}, nil
}
