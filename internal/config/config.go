package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/compute/metadata"
	"github.com/joho/godotenv"
)

const (
	BackendMongo     = "mongo"
	BackendInfluxDB  = "influxdb"
	BackendSQLite    = "sqlite"
	BackendDatastore = "datastore"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	CSVPath     string
	ValueColumn string
	Source      string
	Backend     string
	PlotDir     string

	MongoURI      string
	MongoDatabase string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	SQLitePath string

	// ProjectID is the Google Cloud project that holds the Datastore. If empty and the
	// Datastore backend is selected it is looked up from the GCE metadata server.
	ProjectID string
}

// LoadDotEnv loads environment variables from the given files. Files that don't exist are
// skipped; variables already set in the environment are not overridden.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	appEnv := getEnv("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := ParseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   appEnv,
		LogLevel: level,

		CSVPath:     getEnv("CSV_PATH", "air_quality.csv"),
		ValueColumn: getEnv("VALUE_COLUMN", "CO(GT)"),
		Source:      getEnv("SOURCE", "air_quality"),
		Backend:     getEnv("STORE_BACKEND", BackendMongo),
		PlotDir:     getEnv("PLOT_DIR", "plots"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/"),
		MongoDatabase: getEnv("MONGO_DATABASE", "time_series_db"),

		InfluxURL:    getEnv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "air_quality"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "sensor_data"),

		SQLitePath: getEnv("SQLITE_PATH", "air_quality.db"),

		ProjectID: getEnv("PROJECT_ID", ""),
	}

	return cfg, nil
}

// Validate checks fields that may have been overridden after LoadFromEnv.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMongo, BackendInfluxDB, BackendSQLite, BackendDatastore:
	default:
		return fmt.Errorf("invalid backend %q (allowed: %s, %s, %s, %s)", c.Backend, BackendMongo, BackendInfluxDB, BackendSQLite, BackendDatastore)
	}

	if c.CSVPath == "" {
		return errors.New("CSV path must be given")
	}

	if c.Backend == BackendInfluxDB && c.InfluxToken == "" {
		return errors.New("INFLUX_TOKEN must be set for the influxdb backend")
	}

	return nil
}

// ResolveProjectID fills in ProjectID from the GCE metadata server when it's unset and
// the process is running on GCE.
func (c *Config) ResolveProjectID() error {
	if c.ProjectID != "" || !metadata.OnGCE() {
		return nil
	}

	id, err := metadata.ProjectID()
	if err != nil {
		return fmt.Errorf("get project ID: %w", err)
	}
	c.ProjectID = id
	return nil
}

func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
