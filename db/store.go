// Package db persists Readings and WeeklyAverages to one of several backends.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtraver/airquality/internal/config"
	"github.com/mtraver/airquality/reading"
)

const (
	// ReadingsName is the name of the time-series container holding raw readings.
	ReadingsName = "sensor_data"

	// WeeklyName is the name of the plain container holding weekly averages.
	WeeklyName = "weekly_avg"
)

var ErrUnknownBackend = errors.New("db: unknown backend")

// Store is a place to put readings and weekly averages. Implementations need not
// be safe for concurrent use.
type Store interface {
	// EnsureReadings creates the time-series container for raw readings, keyed by
	// timestamp with minute granularity. It returns an error if the container
	// already exists or can't be created.
	EnsureReadings(ctx context.Context) error

	// InsertReadings writes all the given readings in one batch.
	InsertReadings(ctx context.Context, readings []reading.Reading) error

	// Readings returns every stored reading in timestamp order.
	Readings(ctx context.Context) ([]reading.Reading, error)

	// InsertWeekly writes all the given weekly averages in one batch.
	InsertWeekly(ctx context.Context, weeks []reading.WeeklyAverage) error

	Close(ctx context.Context) error
}

// Open connects to the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		return NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.BackendInfluxDB:
		return NewInfluxDB(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket), nil
	case config.BackendSQLite:
		return NewSQLite(cfg.SQLitePath)
	case config.BackendDatastore:
		if err := cfg.ResolveProjectID(); err != nil {
			return nil, err
		}
		return NewDatastoreDB(ctx, cfg.ProjectID)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
}
