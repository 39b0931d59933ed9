// Package delegate bridges a session to the external reasoning subsystem.
// A delegated call is a single attempt with a hard timeout budget: no retry,
// no unstructured panic across the boundary, always a typed error. Repeating
// a reasoning call may be expensive and non-idempotent, so retry policy, if
// any, belongs to the caller.
package delegate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicecoach/internal/logging"
	"voicecoach/internal/types"
)

var (
	// ErrUnknownSpecialist is returned for a tag outside the closed set,
	// before any downstream call is made.
	ErrUnknownSpecialist = errors.New("unknown specialist tag")

	// ErrTimeout is returned when the call exceeds its budget. Whether the
	// downstream call is actually aborted is the reasoning subsystem's
	// concern, not guaranteed here.
	ErrTimeout = errors.New("delegation timed out")

	// ErrUnavailable is returned when the reasoning subsystem fails.
	ErrUnavailable = errors.New("reasoning subsystem unavailable")

	// ErrRejected is returned when the subsystem answers but declines the
	// query (an empty answer).
	ErrRejected = errors.New("delegation rejected")
)

// Config configures the delegation client.
type Config struct {
	// Timeout is the hard end-to-end budget per call, downstream reasoning
	// latency included.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Timeout: 2 * time.Second}
}

// Client is the async request/response bridge to the reasoning subsystem.
type Client struct {
	reasoner types.Reasoner
	config   Config
}

// New creates a delegation client over the given reasoner.
func New(reasoner types.Reasoner, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Client{reasoner: reasoner, config: cfg}
}

// Ask routes one query to the named specialist and returns its answer.
// An unrecognized tag is rejected before any network call. Exactly one
// attempt is made.
func (c *Client) Ask(ctx context.Context, specialist types.SpecialistTag, query string) (string, error) {
	if !types.KnownSpecialist(specialist) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSpecialist, specialist)
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: empty query", ErrRejected)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	logging.DelegateDebug("Asking %s specialist: %s", specialist, truncate(query, 80))

	answer, err := c.reasoner.Route(ctx, specialist, query)
	elapsed := time.Since(start)

	switch {
	case err == nil && strings.TrimSpace(answer) == "":
		logging.Get(logging.CategoryDelegate).Warn("%s specialist returned empty answer after %v", specialist, elapsed)
		return "", ErrRejected
	case err == nil:
		logging.Delegate("%s specialist answered in %v", specialist, elapsed)
		return answer, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		logging.Get(logging.CategoryDelegate).Warn("%s specialist timed out after %v", specialist, elapsed)
		return "", fmt.Errorf("%w after %v", ErrTimeout, elapsed)
	case errors.Is(err, context.Canceled):
		return "", fmt.Errorf("%w: call cancelled", ErrUnavailable)
	default:
		logging.Get(logging.CategoryDelegate).Error("%s specialist failed: %v", specialist, err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
