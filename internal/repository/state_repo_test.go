package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"garden_irrigation/internal/models"
	"garden_irrigation/internal/repository"
)

type argFunc func(driver.Value) bool

func (f argFunc) Match(v driver.Value) bool { return f(v) }

var stateColumns = []string{"id", "total_applied_l", "pending_l", "pending_s", "window_start", "window_end", "errors", "updated_at"}

func newStateRepo(t *testing.T) (*repository.StateSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return repository.NewStateSQLite(db), mock
}

func TestStateSave_ZeroTimeAndNoWindow(t *testing.T) {
	repo, mock := newStateRepo(t)

	recentUTC := argFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		return time.Since(tm) < 5*time.Second
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO controller_state")).
		WithArgs(1, 54.36, 0.0, 0.0, nil, nil, `["NO_SOLAR_WINDOW"]`, recentUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(context.Background(), models.ControllerState{
		TotalWaterAppliedL: 54.36,
		ErrorCodes:         []string{models.CodeNoSolarWindow},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestStateSave_WindowStoredAsUTC(t *testing.T) {
	repo, mock := newStateRepo(t)
	edt := time.FixedZone("EDT", -4*3600)
	start := time.Date(2024, 6, 1, 6, 40, 0, 0, edt)
	end := start.Add(5 * time.Minute)
	updated := time.Date(2024, 6, 1, 6, 0, 0, 0, edt)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO controller_state")).
		WithArgs(1, 4.36, 50.0, 187.5, start.UTC(), end.UTC(), "", updated.UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(context.Background(), models.ControllerState{
		TotalWaterAppliedL: 4.36,
		PendingRequiredL:   50,
		PendingRuntimeSec:  187.5,
		WindowStart:        &start,
		WindowEnd:          &end,
		UpdatedAt:          updated,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestStateSave_ExecError(t *testing.T) {
	repo, mock := newStateRepo(t)
	mock.ExpectExec("INSERT INTO controller_state").WillReturnError(errors.New("readonly database"))

	if err := repo.Save(context.Background(), models.ControllerState{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStateLoad(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 40, 0, 0, time.UTC)
	updated := time.Date(2024, 6, 1, 10, 41, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rows    func(*sqlmock.ExpectedQuery) *sqlmock.ExpectedQuery
		want    models.ControllerState
		wantErr bool
	}{
		{
			name: "row present",
			rows: func(q *sqlmock.ExpectedQuery) *sqlmock.ExpectedQuery {
				return q.WillReturnRows(sqlmock.NewRows(stateColumns).
					AddRow(1, 60.0, 0.0, 0.0, start, nil, `["WEATHER_UNAVAILABLE"]`, updated))
			},
			want: models.ControllerState{
				ID: 1, TotalWaterAppliedL: 60, WindowStart: &start,
				ErrorCodes: []string{models.CodeWeatherUnavailable}, UpdatedAt: updated,
			},
		},
		{
			name: "no row yet",
			rows: func(q *sqlmock.ExpectedQuery) *sqlmock.ExpectedQuery {
				return q.WillReturnError(sql.ErrNoRows)
			},
			want: models.ControllerState{},
		},
		{
			name: "bad error codes",
			rows: func(q *sqlmock.ExpectedQuery) *sqlmock.ExpectedQuery {
				return q.WillReturnRows(sqlmock.NewRows(stateColumns).
					AddRow(1, 0.0, 0.0, 0.0, nil, nil, `{broken`, updated))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newStateRepo(t)
			tt.rows(mock.ExpectQuery(regexp.QuoteMeta("FROM controller_state WHERE id=?")).WithArgs(1))

			got, err := repo.Load(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Load() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
