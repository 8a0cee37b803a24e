// Package history keeps the amplifier operation log in SQLite.
//
// Every initialisation result and control operation handled by the bridge
// is stored in the amp_events table, so a failed bring-up or a run of bus
// errors can be traced after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the log.
const (
	ActionInit      = "init"
	ActionSetVolume = "set_volume"
	ActionMute      = "mute"
	ActionUnmute    = "unmute"
	ActionSetGain   = "set_gain"
	ActionSleep     = "sleep"
	ActionWake      = "wake"
)

// Sources of an operation.
const (
	SourceMQTT    = "mqtt"
	SourceConsole = "console"
	SourceStartup = "startup"
	SourceAPI     = "api"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// timeLayout is fixed width so created_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// ErrDeviceIDRequired is returned when an event has no device ID.
var ErrDeviceIDRequired = errors.New("history: device id is required")

// Event is one row of the operation log.
type Event struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	SessionID string         `json:"session_id,omitempty"`
	Action    string         `json:"action"`
	Source    string         `json:"source"`
	Success   bool           `json:"success"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	DeviceID   string
	SessionID  string
	Action     string
	FailedOnly bool
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult is one page of events, newest first.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository stores and lists operation events.
type Repository interface {
	Record(ctx context.Context, event *Event) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository implements Repository on the amp_events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an event. ID, Source and CreatedAt are filled if empty.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - event: Event to store; updated with generated fields
//
// Returns:
//   - error: ErrDeviceIDRequired, or the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, event *Event) error {
	if event.DeviceID == "" {
		return ErrDeviceIDRequired
	}
	if event.ID == "" {
		event.ID = "evt-" + uuid.NewString()[:8]
	}
	if event.Source == "" {
		event.Source = SourceMQTT
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if event.Details != nil {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshalling event details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO amp_events (id, device_id, session_id, action, source, success, error_kind, error, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.DeviceID, nullableString(event.SessionID),
		event.Action, event.Source, boolToInt(event.Success),
		nullableString(event.ErrorKind), nullableString(event.Error),
		detailsJSON,
		event.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting amp event: %w", err)
	}
	return nil
}

// List returns events matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "success = 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM amp_events " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting amp events: %w", err)
	}

	query := `SELECT id, device_id, session_id, action, source, success, error_kind, error, details, created_at
		FROM amp_events ` + where + ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying amp events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating amp events: %w", err)
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var e Event
	var sessionID, errorKind, errText, detailsJSON sql.NullString
	var success int
	var createdAt string

	if err := rows.Scan(&e.ID, &e.DeviceID, &sessionID, &e.Action, &e.Source,
		&success, &errorKind, &errText, &detailsJSON, &createdAt); err != nil {
		return Event{}, fmt.Errorf("scanning amp event: %w", err)
	}

	e.SessionID = sessionID.String
	e.ErrorKind = errorKind.String
	e.Error = errText.String
	e.Success = success != 0

	if detailsJSON.Valid && detailsJSON.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
			e.Details = details
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Event{}, fmt.Errorf("parsing amp event timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Repository = (*SQLiteRepository)(nil)
