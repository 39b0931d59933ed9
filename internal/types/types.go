// Package types provides shared type definitions used across voicecoach packages.
// This package exists to break import cycles between session, router, and store.
// Types in this package are foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// USER CONTEXT SNAPSHOT
// =============================================================================

// UserContext is an immutable point-in-time snapshot of a user's plan data.
// It is assembled once before a session starts and shared read-only by all
// concurrent tool-call handlers. A refresh produces a new UserContext; the
// old one is never mutated in place.
type UserContext struct {
	UserID      string
	Profile     Profile
	WorkoutPlan WorkoutPlan
	MealPlan    MealPlan
	Preferences Preferences
	LoadedAt    time.Time
}

// Profile holds basic user identity and body metrics.
type Profile struct {
	DisplayName string
	WeightKg    float64
	HeightCm    float64
	Goal        string // e.g. "hypertrophy", "fat loss", "endurance"
}

// WorkoutPlan is the user's active training plan.
type WorkoutPlan struct {
	Name string
	Days []WorkoutDay
}

// WorkoutDay is one scheduled training day within a plan.
type WorkoutDay struct {
	Weekday   time.Weekday
	Focus     string // e.g. "push", "pull", "legs"
	Exercises []Exercise
}

// Exercise is a single prescribed movement.
type Exercise struct {
	Name     string
	Sets     int
	Reps     int
	WeightKg float64
	Notes    string
}

// DayFor returns the workout day scheduled for the given weekday, if any.
func (p WorkoutPlan) DayFor(d time.Weekday) (WorkoutDay, bool) {
	for _, day := range p.Days {
		if day.Weekday == d {
			return day, true
		}
	}
	return WorkoutDay{}, false
}

// MealPlan is the user's active nutrition plan.
type MealPlan struct {
	Name          string
	DailyCalories int
	ProteinGrams  int
	Meals         []Meal
}

// Meal is one entry in a meal plan.
type Meal struct {
	Name        string
	Calories    int
	Description string
}

// Preferences holds coaching constraints and user choices.
type Preferences struct {
	UnitSystem     string // "metric" or "imperial"
	Injuries       []string
	DislikedFoods  []string
	CoachingStyle  string // e.g. "encouraging", "drill-sergeant"
	ReminderWindow string
}

// =============================================================================
// LOG EVENTS
// =============================================================================

// LogEvent describes one fact to persist, such as a completed exercise set.
// Events are created by the tool router, consumed exactly once by the
// persistence worker, and never mutated.
type LogEvent struct {
	ID         string
	SessionID  string
	UserID     string
	Entity     string // e.g. "exercise_set", "meal"
	Fields     map[string]any
	ObservedAt time.Time
}

// NewLogEvent creates a LogEvent with a fresh ID and the given payload.
func NewLogEvent(sessionID, userID, entity string, fields map[string]any, observedAt time.Time) LogEvent {
	return LogEvent{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		UserID:     userID,
		Entity:     entity,
		Fields:     fields,
		ObservedAt: observedAt,
	}
}

// =============================================================================
// DELEGATION
// =============================================================================

// SpecialistTag identifies a category of delegated reasoning.
// The set is closed; an unrecognized tag is a caller error.
type SpecialistTag string

const (
	SpecialistWorkout    SpecialistTag = "workout"
	SpecialistDiet       SpecialistTag = "diet"
	SpecialistSupplement SpecialistTag = "supplement"
)

// KnownSpecialist reports whether tag is one of the supported specialists.
func KnownSpecialist(tag SpecialistTag) bool {
	switch tag {
	case SpecialistWorkout, SpecialistDiet, SpecialistSupplement:
		return true
	}
	return false
}

// Specialists returns the closed set of supported tags.
func Specialists() []SpecialistTag {
	return []SpecialistTag{SpecialistWorkout, SpecialistDiet, SpecialistSupplement}
}

// DelegationRequest carries one free-text query to a specialist.
// Lifetime is a single call; it is not retained.
type DelegationRequest struct {
	Specialist SpecialistTag
	Query      string
}

// DelegationResponse carries the specialist's answer or a failure reason.
type DelegationResponse struct {
	Answer     string
	FailReason string
}

// String implements fmt.Stringer for log output.
func (r DelegationRequest) String() string {
	return fmt.Sprintf("%s: %s", r.Specialist, truncate(r.Query, 80))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
