package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voicecoach/internal/delegate"
	"voicecoach/internal/logging"
	"voicecoach/internal/types"
)

// FallbackReply is the single user-facing message for any delegation
// failure. Internal error detail never reaches the user.
const FallbackReply = "I'm having trouble answering that right now. Could you rephrase?"

// ContextReader is the read side of the session's context cache.
type ContextReader interface {
	Get() (*types.UserContext, error)
}

// EventSink accepts fire-and-forget log events.
type EventSink interface {
	Enqueue(event types.LogEvent)
}

// SpecialistAsker routes a delegated query to a specialist.
type SpecialistAsker interface {
	Ask(ctx context.Context, specialist types.SpecialistTag, query string) (string, error)
}

// Deps wires the builtin capabilities to their session-owned collaborators.
type Deps struct {
	SessionID   string
	Context     ContextReader
	Events      EventSink
	Specialists SpecialistAsker

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Builtins returns the fixed capability set of a coaching session.
func Builtins(deps Deps) []Capability {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return []Capability{
		{
			Name:        "get_todays_workout",
			Description: "Returns the exercises scheduled for today from the user's active workout plan.",
			Latency:     LatencyCacheRead,
			Handler:     deps.todaysWorkout,
		},
		{
			Name:        "get_meal_plan",
			Description: "Returns the user's active meal plan with calorie and protein targets.",
			Latency:     LatencyCacheRead,
			Handler:     deps.mealPlan,
		},
		{
			Name:        "get_preferences",
			Description: "Returns the user's coaching preferences and constraints.",
			Latency:     LatencyCacheRead,
			Handler:     deps.preferences,
		},
		{
			Name:        "log_set",
			Description: "Records one completed exercise set. Confirms immediately; persistence is asynchronous.",
			Latency:     LatencyQueueWrite,
			Required:    []string{"exercise", "reps"},
			Handler:     deps.logSet,
		},
		{
			Name:        "log_meal",
			Description: "Records one eaten meal. Confirms immediately; persistence is asynchronous.",
			Latency:     LatencyQueueWrite,
			Required:    []string{"meal"},
			Handler:     deps.logMeal,
		},
		{
			Name:        "ask_specialist",
			Description: "Delegates a complex question to the workout, diet, or supplement specialist.",
			Latency:     LatencyDelegated,
			Required:    []string{"specialist", "query"},
			Handler:     deps.askSpecialist,
		},
	}
}

func (d *Deps) todaysWorkout(ctx context.Context, args map[string]any) (string, error) {
	snap, err := d.Context.Get()
	if err != nil {
		return "", err
	}

	day, ok := snap.WorkoutPlan.DayFor(d.Now().Weekday())
	if !ok {
		return "Today is a rest day. Nothing on the plan.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s day:", day.Focus)
	for _, ex := range day.Exercises {
		fmt.Fprintf(&b, " %s, %d sets of %d", ex.Name, ex.Sets, ex.Reps)
		if ex.WeightKg > 0 {
			fmt.Fprintf(&b, " at %.1f kg", ex.WeightKg)
		}
		b.WriteString(".")
	}
	return b.String(), nil
}

func (d *Deps) mealPlan(ctx context.Context, args map[string]any) (string, error) {
	snap, err := d.Context.Get()
	if err != nil {
		return "", err
	}

	plan := snap.MealPlan
	var b strings.Builder
	fmt.Fprintf(&b, "Your plan %q targets %d kcal and %d grams of protein per day.",
		plan.Name, plan.DailyCalories, plan.ProteinGrams)
	for _, meal := range plan.Meals {
		fmt.Fprintf(&b, " %s: %d kcal.", meal.Name, meal.Calories)
	}
	return b.String(), nil
}

func (d *Deps) preferences(ctx context.Context, args map[string]any) (string, error) {
	snap, err := d.Context.Get()
	if err != nil {
		return "", err
	}

	prefs := snap.Preferences
	var parts []string
	parts = append(parts, fmt.Sprintf("Units: %s", prefs.UnitSystem))
	if len(prefs.Injuries) > 0 {
		parts = append(parts, fmt.Sprintf("injuries to work around: %s", strings.Join(prefs.Injuries, ", ")))
	}
	if len(prefs.DislikedFoods) > 0 {
		parts = append(parts, fmt.Sprintf("avoiding: %s", strings.Join(prefs.DislikedFoods, ", ")))
	}
	if prefs.CoachingStyle != "" {
		parts = append(parts, fmt.Sprintf("coaching style: %s", prefs.CoachingStyle))
	}
	return strings.Join(parts, "; ") + ".", nil
}

func (d *Deps) logSet(ctx context.Context, args map[string]any) (string, error) {
	snap, err := d.Context.Get()
	if err != nil {
		return "", err
	}

	exercise := stringArg(args, "exercise")
	reps := intArg(args, "reps")
	weight := floatArg(args, "weight_kg")

	fields := map[string]any{"exercise": exercise, "reps": reps}
	if weight > 0 {
		fields["weight_kg"] = weight
	}

	d.Events.Enqueue(types.NewLogEvent(d.SessionID, snap.UserID, "exercise_set", fields, d.Now()))

	if weight > 0 {
		return fmt.Sprintf("Logged %s, %d reps at %.1f kg.", exercise, reps, weight), nil
	}
	return fmt.Sprintf("Logged %s, %d reps.", exercise, reps), nil
}

func (d *Deps) logMeal(ctx context.Context, args map[string]any) (string, error) {
	snap, err := d.Context.Get()
	if err != nil {
		return "", err
	}

	meal := stringArg(args, "meal")
	calories := intArg(args, "calories")

	fields := map[string]any{"meal": meal}
	if calories > 0 {
		fields["calories"] = calories
	}

	d.Events.Enqueue(types.NewLogEvent(d.SessionID, snap.UserID, "meal", fields, d.Now()))

	return fmt.Sprintf("Logged %s.", meal), nil
}

func (d *Deps) askSpecialist(ctx context.Context, args map[string]any) (string, error) {
	tag := types.SpecialistTag(stringArg(args, "specialist"))
	query := stringArg(args, "query")

	// Caller error: reject before any downstream call.
	if !types.KnownSpecialist(tag) {
		return "", fmt.Errorf("%w: %q", delegate.ErrUnknownSpecialist, tag)
	}

	answer, err := d.Specialists.Ask(ctx, tag, query)
	if err != nil {
		// Typed failures collapse into one conversational fallback; the
		// cause stays in the logs.
		logging.Router("Delegation to %s failed, using fallback: %v", tag, err)
		return FallbackReply, nil
	}
	return answer, nil
}

// Argument coercion. The interaction layer decodes JSON, so numbers usually
// arrive as float64.

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fmt.Sprintf("%v", args[key])
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
