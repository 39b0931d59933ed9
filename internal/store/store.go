// Package store implements the durable storage ports over SQLite: the
// one-shot user-context read consumed at session start, and the single-row
// activity-log append consumed by the persistence worker.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"voicecoach/internal/contextcache"
	"voicecoach/internal/logging"
	"voicecoach/internal/types"
)

// SQLStore is the SQLite-backed implementation of types.ContextStore and
// types.LogStore.
type SQLStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the coaching database at path and applies the schema.
func Open(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// The modernc driver ignores mattn-style DSN parameters, so pragmas go
	// through Exec after opening.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SQLStore{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.Store("Opened store at %s", path)
	return s, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		weight_kg REAL NOT NULL DEFAULT 0,
		height_cm REAL NOT NULL DEFAULT 0,
		goal TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS workout_plans (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		name TEXT NOT NULL,
		days_json TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS meal_plans (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		name TEXT NOT NULL,
		daily_calories INTEGER NOT NULL DEFAULT 0,
		protein_grams INTEGER NOT NULL DEFAULT 0,
		meals_json TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS preferences (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		unit_system TEXT NOT NULL DEFAULT 'metric',
		injuries_json TEXT NOT NULL DEFAULT '[]',
		disliked_foods_json TEXT NOT NULL DEFAULT '[]',
		coaching_style TEXT NOT NULL DEFAULT '',
		reminder_window TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		entity TEXT NOT NULL,
		fields_json TEXT NOT NULL DEFAULT '{}',
		observed_at DATETIME NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_log_session ON activity_log(session_id, recorded_at)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_log_user ON activity_log(user_id, observed_at)`,
}

func (s *SQLStore) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	logging.StoreDebug("Schema applied (%d statements)", len(schema))
	return nil
}

// LoadUserContext assembles the full immutable snapshot for one user.
// Returns contextcache.ErrNotFound when the user has no profile row.
func (s *SQLStore) LoadUserContext(ctx context.Context, userID string) (*types.UserContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()

	var uc types.UserContext
	uc.UserID = userID

	err := s.db.QueryRowContext(ctx,
		`SELECT display_name, weight_kg, height_cm, goal FROM users WHERE id = ?`, userID,
	).Scan(&uc.Profile.DisplayName, &uc.Profile.WeightKg, &uc.Profile.HeightCm, &uc.Profile.Goal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", contextcache.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := s.loadWorkoutPlan(ctx, userID, &uc.WorkoutPlan); err != nil {
		return nil, err
	}
	if err := s.loadMealPlan(ctx, userID, &uc.MealPlan); err != nil {
		return nil, err
	}
	if err := s.loadPreferences(ctx, userID, &uc.Preferences); err != nil {
		return nil, err
	}

	uc.LoadedAt = time.Now()
	logging.StoreDebug("Loaded user context for %s in %v", userID, time.Since(start))
	return &uc, nil
}

func (s *SQLStore) loadWorkoutPlan(ctx context.Context, userID string, plan *types.WorkoutPlan) error {
	var daysJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, days_json FROM workout_plans WHERE user_id = ?`, userID,
	).Scan(&plan.Name, &daysJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // no active plan is a valid state
	}
	if err != nil {
		return fmt.Errorf("failed to load workout plan: %w", err)
	}
	if err := json.Unmarshal([]byte(daysJSON), &plan.Days); err != nil {
		return fmt.Errorf("corrupt workout plan for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLStore) loadMealPlan(ctx context.Context, userID string, plan *types.MealPlan) error {
	var mealsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, daily_calories, protein_grams, meals_json FROM meal_plans WHERE user_id = ?`, userID,
	).Scan(&plan.Name, &plan.DailyCalories, &plan.ProteinGrams, &mealsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load meal plan: %w", err)
	}
	if err := json.Unmarshal([]byte(mealsJSON), &plan.Meals); err != nil {
		return fmt.Errorf("corrupt meal plan for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLStore) loadPreferences(ctx context.Context, userID string, prefs *types.Preferences) error {
	var injuriesJSON, dislikedJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT unit_system, injuries_json, disliked_foods_json, coaching_style, reminder_window
		 FROM preferences WHERE user_id = ?`, userID,
	).Scan(&prefs.UnitSystem, &injuriesJSON, &dislikedJSON, &prefs.CoachingStyle, &prefs.ReminderWindow)
	if errors.Is(err, sql.ErrNoRows) {
		prefs.UnitSystem = "metric"
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(injuriesJSON), &prefs.Injuries); err != nil {
		return fmt.Errorf("corrupt preferences for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(dislikedJSON), &prefs.DislikedFoods); err != nil {
		return fmt.Errorf("corrupt preferences for %s: %w", userID, err)
	}
	return nil
}

// AppendLog writes one event row. Single call per event, no batching.
func (s *SQLStore) AppendLog(ctx context.Context, event types.LogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fieldsJSON, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode event fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, session_id, user_id, entity, fields_json, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.SessionID, event.UserID, event.Entity, string(fieldsJSON), event.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append log event: %w", err)
	}

	logging.StoreDebug("Appended %s event %s", event.Entity, event.ID)
	return nil
}

// SessionLog returns the events recorded for one session in append order.
func (s *SQLStore) SessionLog(ctx context.Context, sessionID string) ([]types.LogEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, entity, fields_json, observed_at
		 FROM activity_log WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session log: %w", err)
	}
	defer rows.Close()

	var events []types.LogEvent
	for rows.Next() {
		var ev types.LogEvent
		var fieldsJSON string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.UserID, &ev.Entity, &fieldsJSON, &ev.ObservedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &ev.Fields); err != nil {
			return nil, fmt.Errorf("corrupt event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
