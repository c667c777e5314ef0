// Package store persists controller state across restarts: the pause state
// machine, per-room occupancy, thermostat cycle timestamps and runtime
// settings. Absent rows mean a fresh start.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite supports a single writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type PauseState struct {
	Paused       bool
	PreviousMode string
	TriggeredBy  string
}

func (s *Store) SavePauseState(ctx context.Context, controller string, state PauseState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pause_state (controller, paused, previous_mode, triggered_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (controller) DO UPDATE SET
			paused = excluded.paused,
			previous_mode = excluded.previous_mode,
			triggered_by = excluded.triggered_by,
			updated_at = excluded.updated_at`,
		controller, state.Paused, state.PreviousMode, state.TriggeredBy, timestamp(time.Now()),
	)
	return err
}

// PauseState returns the saved pause state for the controller. The second
// return value is false if none was saved.
func (s *Store) PauseState(ctx context.Context, controller string) (PauseState, bool, error) {
	var state PauseState
	err := s.db.QueryRowContext(ctx,
		`SELECT paused, previous_mode, triggered_by FROM pause_state WHERE controller = ?`, controller,
	).Scan(&state.Paused, &state.PreviousMode, &state.TriggeredBy)
	if err == sql.ErrNoRows {
		return PauseState{}, false, nil
	}
	if err != nil {
		return PauseState{}, false, err
	}
	return state, true, nil
}

type RoomState struct {
	Room          string
	Active        bool
	OccupiedSince time.Time
	ActiveSince   time.Time
}

func (s *Store) SaveRoomState(ctx context.Context, controller string, state RoomState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_state (controller, room, active, occupied_since, active_since, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (controller, room) DO UPDATE SET
			active = excluded.active,
			occupied_since = excluded.occupied_since,
			active_since = excluded.active_since,
			updated_at = excluded.updated_at`,
		controller, state.Room, state.Active, nullableTimestamp(state.OccupiedSince), nullableTimestamp(state.ActiveSince), timestamp(time.Now()),
	)
	return err
}

// RoomStates returns all saved room states for the controller.
func (s *Store) RoomStates(ctx context.Context, controller string) ([]RoomState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room, active, occupied_since, active_since FROM room_state WHERE controller = ? ORDER BY room`, controller,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var states []RoomState
	for rows.Next() {
		var state RoomState
		var occupiedSince, activeSince sql.NullString
		if err = rows.Scan(&state.Room, &state.Active, &occupiedSince, &activeSince); err != nil {
			return nil, err
		}
		state.OccupiedSince = parseTimestamp(occupiedSince)
		state.ActiveSince = parseTimestamp(activeSince)
		states = append(states, state)
	}
	return states, rows.Err()
}

type CycleState struct {
	Running bool
	UserOff bool
	LastOn  time.Time
	LastOff time.Time
}

func (s *Store) SaveCycleState(ctx context.Context, controller string, state CycleState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_state (controller, running, user_off, last_on, last_off, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (controller) DO UPDATE SET
			running = excluded.running,
			user_off = excluded.user_off,
			last_on = excluded.last_on,
			last_off = excluded.last_off,
			updated_at = excluded.updated_at`,
		controller, state.Running, state.UserOff, nullableTimestamp(state.LastOn), nullableTimestamp(state.LastOff), timestamp(time.Now()),
	)
	return err
}

// CycleState returns the saved cycle state for the controller. The second
// return value is false if none was saved.
func (s *Store) CycleState(ctx context.Context, controller string) (CycleState, bool, error) {
	var state CycleState
	var lastOn, lastOff sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT running, user_off, last_on, last_off FROM cycle_state WHERE controller = ?`, controller,
	).Scan(&state.Running, &state.UserOff, &lastOn, &lastOff)
	if err == sql.ErrNoRows {
		return CycleState{}, false, nil
	}
	if err != nil {
		return CycleState{}, false, err
	}
	state.LastOn = parseTimestamp(lastOn)
	state.LastOff = parseTimestamp(lastOff)
	return state, true, nil
}

func (s *Store) SaveSetting(ctx context.Context, controller string, name string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (controller, name, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (controller, name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		controller, name, value, timestamp(time.Now()),
	)
	return err
}

// Settings returns all saved settings for the controller.
func (s *Store) Settings(ctx context.Context, controller string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM settings WHERE controller = ?`, controller,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	settings := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err = rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		settings[name] = value
	}
	return settings, rows.Err()
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return timestamp(t)
}

func parseTimestamp(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
