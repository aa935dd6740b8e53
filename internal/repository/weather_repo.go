package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"garden_irrigation/internal/models"
)

const weatherColumns = `date, kind, location, condition, condition_code, max_temp_c, min_temp_c, avg_temp_c,
		temp_c, total_precip_mm, precip_mm, humidity, wind_kph, cloud, uv, chance_of_rain,
		sunrise, sunset, moon_phase, recorded_at`

const (
	insertWeatherSQL = `INSERT INTO weather_history (` + weatherColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	countHistorySQL = `SELECT COUNT(1) FROM weather_history WHERE date = ? AND kind = ? AND location = ?`

	defaultWeatherLimit = 500
)

// WeatherSQLite stores fetched weather in the weather_history table.
type WeatherSQLite struct {
	db *sql.DB
}

func NewWeatherSQLite(db *sql.DB) *WeatherSQLite { return &WeatherSQLite{db: db} }

var _ WeatherRepo = (*WeatherSQLite)(nil)

// Append inserts recs in one transaction.
func (r *WeatherSQLite) Append(ctx context.Context, recs ...models.WeatherRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin weather insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertWeatherSQL)
	if err != nil {
		return fmt.Errorf("prepare weather insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		recorded := rec.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now()
		}
		if _, err = stmt.ExecContext(ctx,
			rec.Date, rec.Kind, rec.Location, rec.Condition, rec.ConditionCode,
			rec.MaxTempC, rec.MinTempC, rec.AvgTempC,
			rec.TempC, rec.TotalPrecipMM, rec.PrecipMM, rec.Humidity, rec.WindKph, rec.Cloud, rec.UV,
			rec.ChanceOfRain, rec.Sunrise, rec.Sunset, rec.MoonPhase,
			recorded.UTC().Format(sqliteTimeLayout),
		); err != nil {
			return fmt.Errorf("insert weather record %d (%s %s): %w", i, rec.Kind, rec.Date, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit weather insert: %w", err)
	}
	return nil
}

// List returns matching records ordered by date then insertion.
func (r *WeatherSQLite) List(ctx context.Context, f WeatherFilter) ([]models.WeatherRecord, error) {
	var (
		conds []string
		args  []any
	)
	if f.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, f.To)
	}
	if kind := strings.ToLower(strings.TrimSpace(f.Kind)); kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, kind)
	}
	if f.Location != "" {
		conds = append(conds, "location = ?")
		args = append(args, f.Location)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultWeatherLimit
	}

	q := `SELECT id, ` + weatherColumns + ` FROM weather_history`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY date ASC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WeatherRecord
	for rows.Next() {
		var (
			rec                   models.WeatherRecord
			condition             sql.NullString
			code                  sql.NullInt64
			sunrise, sunset, moon sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.Date, &rec.Kind, &rec.Location, &condition, &code,
			&rec.MaxTempC, &rec.MinTempC, &rec.AvgTempC,
			&rec.TempC, &rec.TotalPrecipMM, &rec.PrecipMM, &rec.Humidity, &rec.WindKph, &rec.Cloud, &rec.UV,
			&rec.ChanceOfRain, &sunrise, &sunset, &moon, &rec.RecordedAt,
		); err != nil {
			return nil, err
		}
		rec.Condition, rec.ConditionCode = condition.String, int(code.Int64)
		rec.Sunrise, rec.Sunset, rec.MoonPhase = sunrise.String, sunset.String, moon.String
		rec.RecordedAt = rec.RecordedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasHistory reports whether a history record for date and location exists.
func (r *WeatherSQLite) HasHistory(ctx context.Context, date, location string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countHistorySQL, date, models.WeatherKindHistory, location).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
