package delegate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"voicecoach/internal/types"
)

// fakeReasoner counts calls and serves a canned answer, error, or hang.
type fakeReasoner struct {
	calls  int64
	answer string
	err    error
	hang   bool

	lastTag atomic.Value // types.SpecialistTag
}

func (f *fakeReasoner) Route(ctx context.Context, specialist types.SpecialistTag, query string) (string, error) {
	atomic.AddInt64(&f.calls, 1)
	f.lastTag.Store(specialist)
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

func TestAskRoutesToMatchingSpecialist(t *testing.T) {
	for _, tag := range types.Specialists() {
		r := &fakeReasoner{answer: "do more squats"}
		c := New(r, DefaultConfig())

		answer, err := c.Ask(context.Background(), tag, "how do I progress?")
		if err != nil {
			t.Fatalf("Ask(%s) failed: %v", tag, err)
		}
		if answer != "do more squats" {
			t.Errorf("unexpected answer: %q", answer)
		}
		if got := r.lastTag.Load().(types.SpecialistTag); got != tag {
			t.Errorf("reasoner saw tag %s, want %s", got, tag)
		}
	}
}

func TestAskRejectsUnknownTagBeforeNetwork(t *testing.T) {
	r := &fakeReasoner{answer: "nope"}
	c := New(r, DefaultConfig())

	_, err := c.Ask(context.Background(), types.SpecialistTag("astrology"), "what do the stars say?")
	if !errors.Is(err, ErrUnknownSpecialist) {
		t.Fatalf("got %v, want ErrUnknownSpecialist", err)
	}
	if n := atomic.LoadInt64(&r.calls); n != 0 {
		t.Errorf("reasoner called %d times for unknown tag, want 0", n)
	}
}

func TestAskTimeout(t *testing.T) {
	r := &fakeReasoner{hang: true}
	c := New(r, Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := c.Ask(context.Background(), types.SpecialistWorkout, "slow question")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, budget was 50ms", elapsed)
	}

	// Single attempt only.
	if n := atomic.LoadInt64(&r.calls); n != 1 {
		t.Errorf("reasoner called %d times, want exactly 1 (no retry)", n)
	}
}

func TestAskDownstreamFailure(t *testing.T) {
	r := &fakeReasoner{err: errors.New("model overloaded")}
	c := New(r, DefaultConfig())

	_, err := c.Ask(context.Background(), types.SpecialistDiet, "macros?")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if n := atomic.LoadInt64(&r.calls); n != 1 {
		t.Errorf("reasoner called %d times, want exactly 1 (no retry)", n)
	}
}

func TestAskEmptyAnswerIsRejected(t *testing.T) {
	r := &fakeReasoner{answer: "   "}
	c := New(r, DefaultConfig())

	_, err := c.Ask(context.Background(), types.SpecialistSupplement, "creatine timing?")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("got %v, want ErrRejected", err)
	}
}

func TestAskEmptyQuery(t *testing.T) {
	r := &fakeReasoner{}
	c := New(r, DefaultConfig())

	_, err := c.Ask(context.Background(), types.SpecialistWorkout, "  ")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("got %v, want ErrRejected", err)
	}
	if n := atomic.LoadInt64(&r.calls); n != 0 {
		t.Errorf("reasoner called %d times for empty query, want 0", n)
	}
}
