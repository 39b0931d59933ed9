package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"voicecoach/internal/types"
)

// SaveUserContext upserts a full user snapshot. Used by onboarding flows,
// the demo seed, and tests; the session core itself only reads.
func (s *SQLStore) SaveUserContext(ctx context.Context, uc *types.UserContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, display_name, weight_kg, height_cm, goal)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   display_name=excluded.display_name, weight_kg=excluded.weight_kg,
		   height_cm=excluded.height_cm, goal=excluded.goal`,
		uc.UserID, uc.Profile.DisplayName, uc.Profile.WeightKg, uc.Profile.HeightCm, uc.Profile.Goal,
	); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	daysJSON, err := json.Marshal(uc.WorkoutPlan.Days)
	if err != nil {
		return fmt.Errorf("failed to encode workout days: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workout_plans (user_id, name, days_json) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET name=excluded.name, days_json=excluded.days_json`,
		uc.UserID, uc.WorkoutPlan.Name, string(daysJSON),
	); err != nil {
		return fmt.Errorf("failed to save workout plan: %w", err)
	}

	mealsJSON, err := json.Marshal(uc.MealPlan.Meals)
	if err != nil {
		return fmt.Errorf("failed to encode meals: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meal_plans (user_id, name, daily_calories, protein_grams, meals_json)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name=excluded.name, daily_calories=excluded.daily_calories,
		   protein_grams=excluded.protein_grams, meals_json=excluded.meals_json`,
		uc.UserID, uc.MealPlan.Name, uc.MealPlan.DailyCalories, uc.MealPlan.ProteinGrams, string(mealsJSON),
	); err != nil {
		return fmt.Errorf("failed to save meal plan: %w", err)
	}

	injuriesJSON, _ := json.Marshal(uc.Preferences.Injuries)
	dislikedJSON, _ := json.Marshal(uc.Preferences.DislikedFoods)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO preferences (user_id, unit_system, injuries_json, disliked_foods_json, coaching_style, reminder_window)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   unit_system=excluded.unit_system, injuries_json=excluded.injuries_json,
		   disliked_foods_json=excluded.disliked_foods_json,
		   coaching_style=excluded.coaching_style, reminder_window=excluded.reminder_window`,
		uc.UserID, uc.Preferences.UnitSystem, string(injuriesJSON), string(dislikedJSON),
		uc.Preferences.CoachingStyle, uc.Preferences.ReminderWindow,
	); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	return tx.Commit()
}

// SeedDemoUser inserts a small demo profile when it does not already exist.
func (s *SQLStore) SeedDemoUser(ctx context.Context, userID string) error {
	demo := &types.UserContext{
		UserID: userID,
		Profile: types.Profile{
			DisplayName: "Demo Lifter",
			WeightKg:    80,
			HeightCm:    178,
			Goal:        "hypertrophy",
		},
		WorkoutPlan: types.WorkoutPlan{
			Name: "3-day push/pull/legs",
			Days: []types.WorkoutDay{
				{Weekday: time.Monday, Focus: "push", Exercises: []types.Exercise{
					{Name: "bench press", Sets: 3, Reps: 8, WeightKg: 80},
					{Name: "overhead press", Sets: 3, Reps: 10, WeightKg: 40},
				}},
				{Weekday: time.Wednesday, Focus: "pull", Exercises: []types.Exercise{
					{Name: "deadlift", Sets: 3, Reps: 5, WeightKg: 140},
					{Name: "barbell row", Sets: 3, Reps: 8, WeightKg: 70},
				}},
				{Weekday: time.Friday, Focus: "legs", Exercises: []types.Exercise{
					{Name: "back squat", Sets: 4, Reps: 6, WeightKg: 110},
					{Name: "leg press", Sets: 3, Reps: 12, WeightKg: 180},
				}},
			},
		},
		MealPlan: types.MealPlan{
			Name:          "lean bulk",
			DailyCalories: 2800,
			ProteinGrams:  170,
			Meals: []types.Meal{
				{Name: "breakfast", Calories: 600, Description: "oats, eggs, fruit"},
				{Name: "lunch", Calories: 900, Description: "rice, chicken, vegetables"},
				{Name: "dinner", Calories: 900, Description: "potato, beef, salad"},
				{Name: "snack", Calories: 400, Description: "yogurt and nuts"},
			},
		},
		Preferences: types.Preferences{
			UnitSystem:    "metric",
			CoachingStyle: "encouraging",
		},
	}
	return s.SaveUserContext(ctx, demo)
}
