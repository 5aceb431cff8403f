package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Supported warehouse drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir     string
	SourcePaths map[domain.Source]string
	ChunkSize   int

	LoadBatchSize   int
	LoadMode        domain.LoadMode
	LoadMaxAttempts int

	TemperatureRange  domain.TemperatureRange
	MaxMissingPercent float64
	MissingStrategy   domain.MissingStrategy

	CitySampleSize int
	FactSampleSize int
	SampleSeed     int64

	WarehouseDriver string
	WarehouseDSN    string
	WarehouseSchema string

	// Fact change feed.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaFactTopic     string
	BatchSize          int
	BatchFlushInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	chunkSize, err := parseInt("CHUNK_SIZE", 500000, 1)
	if err != nil {
		return nil, err
	}
	loadBatchSize, err := parseInt("LOAD_BATCH_SIZE", 50000, 1)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := parseInt("LOAD_MAX_ATTEMPTS", 3, 1)
	if err != nil {
		return nil, err
	}
	citySample, err := parseInt("CITY_SAMPLE_SIZE", 1000, 0)
	if err != nil {
		return nil, err
	}
	factSample, err := parseInt("FACT_SAMPLE_SIZE", 0, 0)
	if err != nil {
		return nil, err
	}
	seed, err := strconv.ParseInt(sharedcfg.EnvOrDefault("SAMPLE_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SAMPLE_SEED")
	}

	tempMin, err := parseFloat("TEMP_MIN", -60)
	if err != nil {
		return nil, err
	}
	tempMax, err := parseFloat("TEMP_MAX", 50)
	if err != nil {
		return nil, err
	}
	if tempMin >= tempMax {
		return nil, errors.New("TEMP_MIN must be below TEMP_MAX")
	}
	maxMissing, err := parseFloat("MAX_MISSING_PCT", 50)
	if err != nil {
		return nil, err
	}
	if maxMissing < 0 || maxMissing > 100 {
		return nil, errors.New("invalid MAX_MISSING_PCT: must be 0-100")
	}

	missing, err := domain.ParseMissingStrategy(os.Getenv("MISSING_STRATEGY"))
	if err != nil {
		return nil, fmt.Errorf("invalid MISSING_STRATEGY: %w", err)
	}
	mode, err := domain.ParseLoadMode(os.Getenv("LOAD_MODE"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOAD_MODE: %w", err)
	}

	driver := strings.ToLower(sharedcfg.EnvOrDefault("WAREHOUSE_DRIVER", DriverPostgres))
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("invalid WAREHOUSE_DRIVER %q: must be postgres or sqlite", driver)
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data/raw")

	cfg := &Config{
		DataDir:     dataDir,
		SourcePaths: sourcePaths(dataDir),
		ChunkSize:   chunkSize,

		LoadBatchSize:   loadBatchSize,
		LoadMode:        mode,
		LoadMaxAttempts: maxAttempts,

		TemperatureRange:  domain.TemperatureRange{Min: tempMin, Max: tempMax},
		MaxMissingPercent: maxMissing,
		MissingStrategy:   missing,

		CitySampleSize: citySample,
		FactSampleSize: factSample,
		SampleSeed:     seed,

		WarehouseDriver: driver,
		WarehouseDSN:    warehouseDSN(driver),
		WarehouseSchema: sharedcfg.EnvOrDefault("WAREHOUSE_SCHEMA", "climate"),

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       brokers,
		KafkaFactTopic:     sharedcfg.EnvOrDefault("KAFKA_FACT_TOPIC", "climate-facts"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	if _, set := os.LookupEnv("HTTP_ADDR"); !set {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaFactTopic == "" {
		return nil, errors.New("KAFKA_FACT_TOPIC is required")
	}
	if cfg.WarehouseSchema == "" {
		return nil, errors.New("WAREHOUSE_SCHEMA is required")
	}

	return cfg, nil
}

// envNames maps each source to the variable overriding its file path.
var envNames = map[domain.Source]string{
	domain.SourceGlobal:    "GLOBAL_FILE",
	domain.SourceCountry:   "COUNTRY_FILE",
	domain.SourceState:     "STATE_FILE",
	domain.SourceMajorCity: "MAJOR_CITY_FILE",
	domain.SourceCity:      "CITY_FILE",
}

// sourcePaths resolves each source file. Relative overrides are taken
// relative to dataDir.
func sourcePaths(dataDir string) map[domain.Source]string {
	paths := make(map[domain.Source]string, len(envNames))
	for _, src := range domain.Sources() {
		name := sharedcfg.EnvOrDefault(envNames[src], src.FileName())
		if !filepath.IsAbs(name) {
			name = filepath.Join(dataDir, name)
		}
		paths[src] = name
	}
	return paths
}

func warehouseDSN(driver string) string {
	if dsn := os.Getenv("WAREHOUSE_DSN"); dsn != "" {
		return dsn
	}
	if driver == DriverSQLite {
		return "climate.db"
	}
	u := url.URL{
		Scheme: "postgres",
		User: url.UserPassword(
			sharedcfg.EnvOrDefault("POSTGRES_USER", "climate"),
			sharedcfg.EnvOrDefault("POSTGRES_PASSWORD", "climate_password"),
		),
		Host: net.JoinHostPort(
			sharedcfg.EnvOrDefault("POSTGRES_HOST", "localhost"),
			sharedcfg.EnvOrDefault("POSTGRES_PORT", "5432"),
		),
		Path:     "/" + sharedcfg.EnvOrDefault("POSTGRES_DB", "climate_db"),
		RawQuery: "sslmode=" + sharedcfg.EnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}
	return u.String()
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
