package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"garden_irrigation/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	controllerStateRowID = 1

	upsertStateSQL = `
		INSERT INTO controller_state (id, total_applied_l, pending_l, pending_s, window_start, window_end, errors, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_applied_l=excluded.total_applied_l,
			pending_l=excluded.pending_l,
			pending_s=excluded.pending_s,
			window_start=excluded.window_start,
			window_end=excluded.window_end,
			errors=excluded.errors,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT id, total_applied_l, pending_l, pending_s, window_start, window_end, errors, updated_at
		FROM controller_state WHERE id=?
	`
)

func marshalErrorCodes(codes []string) (string, error) {
	if len(codes) == 0 {
		return "", nil
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalErrorCodes(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(s), &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// nullableTime maps a nil pointer to SQL NULL and anything else to UTC.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Save upserts the single controller_state row.
func (r *StateSQLite) Save(ctx context.Context, s models.ControllerState) error {
	codes, err := marshalErrorCodes(s.ErrorCodes)
	if err != nil {
		return err
	}

	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = r.db.ExecContext(ctx, upsertStateSQL,
		controllerStateRowID,
		s.TotalWaterAppliedL,
		s.PendingRequiredL,
		s.PendingRuntimeSec,
		nullableTime(s.WindowStart),
		nullableTime(s.WindowEnd),
		codes,
		ts.UTC(),
	)
	return err
}

// Load returns the zero state when nothing was saved yet.
func (r *StateSQLite) Load(ctx context.Context) (models.ControllerState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, controllerStateRowID)

	var (
		s          models.ControllerState
		start, end sql.NullTime
		codes      sql.NullString
	)
	if err := row.Scan(
		&s.ID,
		&s.TotalWaterAppliedL,
		&s.PendingRequiredL,
		&s.PendingRuntimeSec,
		&start,
		&end,
		&codes,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ControllerState{}, nil
		}
		return models.ControllerState{}, err
	}

	parsed, err := unmarshalErrorCodes(codes.String)
	if err != nil {
		return models.ControllerState{}, err
	}
	s.ErrorCodes = parsed
	s.WindowStart, s.WindowEnd = timePtr(start), timePtr(end)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
