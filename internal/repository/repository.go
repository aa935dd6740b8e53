package repository

import (
	"context"
	"database/sql"
	"time"

	"garden_irrigation/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type StateRepo interface {
	Save(ctx context.Context, s models.ControllerState) error
	Load(ctx context.Context) (models.ControllerState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.IrrigationEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.IrrigationEvent, error)
}

// WeatherFilter narrows a weather history listing. Dates are YYYY-MM-DD and
// inclusive; empty fields do not filter.
type WeatherFilter struct {
	From     string
	To       string
	Kind     string
	Location string
	Limit    int
}

type WeatherRepo interface {
	Append(ctx context.Context, recs ...models.WeatherRecord) error
	List(ctx context.Context, f WeatherFilter) ([]models.WeatherRecord, error)
	HasHistory(ctx context.Context, date, location string) (bool, error)
}

type Repository struct {
	StateRepo   StateRepo
	EventRepo   EventRepo
	WeatherRepo WeatherRepo
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo:   NewStateSQLite(db),
		EventRepo:   NewEventSQLite(db),
		WeatherRepo: NewWeatherSQLite(db),
		Auth:        NewUserRepository(db),
	}
}
