package types

import (
	"testing"
	"time"
)

func TestDayFor(t *testing.T) {
	plan := WorkoutPlan{
		Name: "PPL",
		Days: []WorkoutDay{
			{Weekday: time.Monday, Focus: "push"},
			{Weekday: time.Wednesday, Focus: "pull"},
			{Weekday: time.Friday, Focus: "legs"},
		},
	}

	day, ok := plan.DayFor(time.Wednesday)
	if !ok {
		t.Fatal("expected a workout day on Wednesday")
	}
	if day.Focus != "pull" {
		t.Errorf("got focus %q, want %q", day.Focus, "pull")
	}

	if _, ok := plan.DayFor(time.Sunday); ok {
		t.Error("expected no workout day on Sunday")
	}
}

func TestKnownSpecialist(t *testing.T) {
	tests := []struct {
		tag  SpecialistTag
		want bool
	}{
		{SpecialistWorkout, true},
		{SpecialistDiet, true},
		{SpecialistSupplement, true},
		{SpecialistTag("astrology"), false},
		{SpecialistTag(""), false},
	}

	for _, tt := range tests {
		if got := KnownSpecialist(tt.tag); got != tt.want {
			t.Errorf("KnownSpecialist(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}

func TestNewLogEvent(t *testing.T) {
	now := time.Now()
	ev := NewLogEvent("sess-1", "user-1", "exercise_set", map[string]any{"reps": 8}, now)

	if ev.ID == "" {
		t.Error("expected a generated event ID")
	}
	if ev.SessionID != "sess-1" || ev.UserID != "user-1" {
		t.Errorf("unexpected identity fields: %+v", ev)
	}
	if !ev.ObservedAt.Equal(now) {
		t.Errorf("ObservedAt = %v, want %v", ev.ObservedAt, now)
	}

	other := NewLogEvent("sess-1", "user-1", "exercise_set", nil, now)
	if other.ID == ev.ID {
		t.Error("expected unique IDs per event")
	}
}
