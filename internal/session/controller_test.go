package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"voicecoach/internal/delegate"
	"voicecoach/internal/router"
	"voicecoach/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend implements all three ports with call counting and fault
// injection.
type fakeBackend struct {
	mu sync.Mutex

	loadErr    error
	loadCalls  int64
	appendErr  error
	appendSlow time.Duration
	appended   []types.LogEvent

	routeAnswer string
	routeErr    error
	routeHang   bool
	routeCalls  int64
}

func (f *fakeBackend) LoadUserContext(ctx context.Context, userID string) (*types.UserContext, error) {
	atomic.AddInt64(&f.loadCalls, 1)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &types.UserContext{
		UserID: userID,
		WorkoutPlan: types.WorkoutPlan{
			Name: "3-day split",
			Days: []types.WorkoutDay{{
				Weekday:   time.Monday,
				Focus:     "push",
				Exercises: []types.Exercise{{Name: "bench press", Sets: 3, Reps: 8}},
			}},
		},
		MealPlan:    types.MealPlan{Name: "cut", DailyCalories: 2200},
		Preferences: types.Preferences{UnitSystem: "metric"},
	}, nil
}

func (f *fakeBackend) AppendLog(ctx context.Context, event types.LogEvent) error {
	if f.appendSlow > 0 {
		select {
		case <-time.After(f.appendSlow):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, event)
	return nil
}

func (f *fakeBackend) Route(ctx context.Context, specialist types.SpecialistTag, query string) (string, error) {
	atomic.AddInt64(&f.routeCalls, 1)
	if f.routeHang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.routeAnswer, f.routeErr
}

func (f *fakeBackend) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

type fakeHandle struct{ id string }

func (h fakeHandle) ID() string { return h.id }

func monday() time.Time {
	return time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC) // a Monday
}

func newController(t *testing.T, backend *fakeBackend, opts Options) *Controller {
	t.Helper()
	if opts.UserID == "" {
		opts.UserID = "user-1"
	}
	if opts.Now == nil {
		opts.Now = monday
	}
	c, err := New(backend, backend, backend, opts)
	require.NoError(t, err)
	return c
}

func startActive(t *testing.T, backend *fakeBackend, opts Options) *Controller {
	t.Helper()
	c := newController(t, backend, opts)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Attach(fakeHandle{id: "room-1"}))
	return c
}

func TestLifecycleHappyPath(t *testing.T) {
	backend := &fakeBackend{routeAnswer: "progressive overload"}
	c := newController(t, backend, Options{})
	defer c.Close()

	assert.Equal(t, StateCreated, c.State())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateReady, c.State())

	require.NoError(t, c.Attach(fakeHandle{id: "room-1"}))
	assert.Equal(t, StateActive, c.State())

	res, err := c.Invoke(context.Background(), "get_todays_workout", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "bench press")

	c.Close()
	assert.Equal(t, StateClosed, c.State())
}

func TestStartFailureIsFatal(t *testing.T) {
	backend := &fakeBackend{loadErr: errors.New("db is down")}
	c := newController(t, backend, Options{})

	err := c.Start(context.Background())
	require.ErrorIs(t, err, ErrInitFailed)

	// Straight to terminal; nothing partially initialized.
	assert.Equal(t, StateClosed, c.State())
	_, err = c.Invoke(context.Background(), "get_todays_workout", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseAfterFatalInitStaysClosed(t *testing.T) {
	backend := &fakeBackend{loadErr: errors.New("db is down")}
	c := newController(t, backend, Options{})

	require.ErrorIs(t, c.Start(context.Background()), ErrInitFailed)
	require.Equal(t, StateClosed, c.State())

	// Closed is terminal: the caller's deferred Close must not re-enter the
	// lifecycle, not even transiently through Draining.
	sawDraining := make(chan struct{}, 1)
	stopWatch := make(chan struct{})
	var watchWg sync.WaitGroup
	watchWg.Add(1)
	go func() {
		defer watchWg.Done()
		for {
			select {
			case <-stopWatch:
				return
			default:
			}
			if c.State() == StateDraining {
				select {
				case sawDraining <- struct{}{}:
				default:
				}
			}
		}
	}()

	c.Close()
	close(stopWatch)
	watchWg.Wait()

	select {
	case <-sawDraining:
		t.Fatal("closed session re-entered Draining")
	default:
	}
	assert.Equal(t, StateClosed, c.State())
}

func TestStartTwice(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend, Options{})
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
	assert.EqualValues(t, 1, atomic.LoadInt64(&backend.loadCalls))
}

func TestInvokeRequiresActive(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend, Options{})
	defer c.Close()

	_, err := c.Invoke(context.Background(), "get_todays_workout", nil)
	assert.ErrorIs(t, err, ErrNotActive)

	require.NoError(t, c.Start(context.Background()))
	_, err = c.Invoke(context.Background(), "get_todays_workout", nil)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestAttachRequiresReady(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend, Options{})
	defer c.Close()

	assert.ErrorIs(t, c.Attach(fakeHandle{}), ErrNotReady)
}

func TestNoTransitionBackToReady(t *testing.T) {
	backend := &fakeBackend{}
	c := startActive(t, backend, Options{})
	defer c.Close()

	// A second attach while Active must fail: no path back through Ready.
	assert.Error(t, c.Attach(fakeHandle{id: "room-2"}))
	assert.Equal(t, StateActive, c.State())
}

func TestLogFlowEndToEnd(t *testing.T) {
	backend := &fakeBackend{}
	c := startActive(t, backend, Options{})
	defer c.Close()

	const n = 50
	for i := 0; i < n; i++ {
		res, err := c.Invoke(context.Background(), "log_set", map[string]any{
			"exercise": "squat",
			"reps":     float64(5 + i%3),
		})
		require.NoError(t, err)
		assert.Contains(t, res.Reply, "Logged")
	}

	require.Eventually(t, func() bool { return backend.appendedCount() == n },
		2*time.Second, 10*time.Millisecond)

	// FIFO within the session.
	backend.mu.Lock()
	defer backend.mu.Unlock()
	var last time.Time
	for i, ev := range backend.appended {
		assert.Equal(t, c.ID(), ev.SessionID)
		if ev.ObservedAt.Before(last) {
			t.Fatalf("event %d observed out of order", i)
		}
		last = ev.ObservedAt
	}
}

func TestDelegationFailureIsolated(t *testing.T) {
	backend := &fakeBackend{routeErr: errors.New("model down")}
	c := startActive(t, backend, Options{DelegationTimeout: 200 * time.Millisecond})
	defer c.Close()

	// Failed delegation collapses to the fallback, not an error.
	res, err := c.Invoke(context.Background(), "ask_specialist", map[string]any{
		"specialist": "diet", "query": "macros?",
	})
	require.NoError(t, err)
	assert.Equal(t, router.FallbackReply, res.Reply)

	// Subsequent calls are unaffected.
	res, err = c.Invoke(context.Background(), "get_todays_workout", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)
}

func TestConcurrentInvocationsIsolated(t *testing.T) {
	backend := &fakeBackend{routeHang: true}
	c := startActive(t, backend, Options{DelegationTimeout: 100 * time.Millisecond})
	defer c.Close()

	var wg sync.WaitGroup
	errsCh := make(chan error, 20)

	// Hanging delegations and healthy cache reads in parallel.
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := c.Invoke(context.Background(), "ask_specialist", map[string]any{
				"specialist": "workout", "query": "stuck one",
			})
			if err == nil && res.Reply != router.FallbackReply {
				errsCh <- fmt.Errorf("hung delegation produced %q", res.Reply)
				return
			}
			errsCh <- err
		}()
		go func() {
			defer wg.Done()
			_, err := c.Invoke(context.Background(), "get_meal_plan", nil)
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)

	for err := range errsCh {
		assert.NoError(t, err)
	}
}

func TestUnknownSpecialistTypedError(t *testing.T) {
	backend := &fakeBackend{}
	c := startActive(t, backend, Options{})
	defer c.Close()

	_, err := c.Invoke(context.Background(), "ask_specialist", map[string]any{
		"specialist": "astrology", "query": "stars?",
	})
	require.ErrorIs(t, err, delegate.ErrUnknownSpecialist)
	assert.EqualValues(t, 0, atomic.LoadInt64(&backend.routeCalls))
}

func TestCloseBoundedByGracePeriod(t *testing.T) {
	grace := 200 * time.Millisecond
	backend := &fakeBackend{appendSlow: 10 * time.Second}
	c := startActive(t, backend, Options{QueueCapacity: 128, DrainGrace: grace})

	// Queue a pile of events against a stuck store.
	for i := 0; i < 40; i++ {
		_, err := c.Invoke(context.Background(), "log_set", map[string]any{
			"exercise": "deadlift", "reps": float64(5),
		})
		require.NoError(t, err)
	}

	start := time.Now()
	c.Close()
	elapsed := time.Since(start)

	// Grace plus epsilon, regardless of backlog. Close waits on in-flight
	// calls and the worker sequentially, so allow both grace windows.
	assert.Less(t, elapsed, 2*grace+500*time.Millisecond,
		"teardown must be bounded by the grace period")
	assert.Equal(t, StateClosed, c.State())

	// Let the cancelled worker unwind before goleak looks around.
	time.Sleep(100 * time.Millisecond)
}

func TestInvokeDuringDrainRejected(t *testing.T) {
	backend := &fakeBackend{}
	c := startActive(t, backend, Options{})

	c.Close()
	_, err := c.Invoke(context.Background(), "get_todays_workout", nil)
	if !errors.Is(err, ErrDraining) && !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrDraining or ErrClosed", err)
	}
}

func TestOnDetachTearsDown(t *testing.T) {
	backend := &fakeBackend{}
	c := startActive(t, backend, Options{})

	c.OnDetach()
	assert.Equal(t, StateClosed, c.State())

	// Idempotent.
	c.OnDetach()
	c.Close()
	assert.Equal(t, StateClosed, c.State())
}

func TestNewRequiresUserID(t *testing.T) {
	backend := &fakeBackend{}
	_, err := New(backend, backend, backend, Options{})
	require.ErrorIs(t, err, ErrInitFailed)
}

func TestWriteFailureNeverSurfaces(t *testing.T) {
	backend := &fakeBackend{appendErr: errors.New("disk full")}
	c := startActive(t, backend, Options{})
	defer c.Close()

	res, err := c.Invoke(context.Background(), "log_meal", map[string]any{"meal": "lunch"})
	require.NoError(t, err)
	assert.False(t, strings.Contains(res.Reply, "disk"), "storage failure leaked to user")

	require.Eventually(t, func() bool {
		return c.GetMetrics().Queue.Failed >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
