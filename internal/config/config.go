package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings shared by every pipeline command, populated from
// environment variables. Per-run parameters (periods, paths) are flags.
type Config struct {
	DataDir   string
	LogLevel  string
	LogFormat string

	// Copernicus Climate Data Store.
	CDSURL          string
	CDSKey          string
	CDSDataset      string
	CDSTimeout      time.Duration
	CDSMaxRetries   int
	CDSPollInterval time.Duration

	PSMSLBaseURL string
	PSMSLTimeout time.Duration

	CatalogPath string

	// Artifact events.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	PushgatewayURL string
	MinSamples     int
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; real environment variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cdsTimeout, err := parseDuration("CDS_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("CDS_POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	psmslTimeout, err := parseDuration("PSMSL_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	maxRetries, err := parsePositiveInt("CDS_MAX_RETRIES", 4)
	if err != nil {
		return nil, err
	}
	minSamples, err := parsePositiveInt("MIN_SAMPLES", 10)
	if err != nil {
		return nil, err
	}

	dataDir := EnvOrDefault("DATA_DIR", "data")
	brokers := ParseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DataDir:         dataDir,
		LogLevel:        EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       EnvOrDefault("LOG_FORMAT", "json"),
		CDSURL:          strings.TrimRight(EnvOrDefault("CDS_API_URL", "https://cds.climate.copernicus.eu/api"), "/"),
		CDSKey:          os.Getenv("CDS_API_KEY"),
		CDSDataset:      EnvOrDefault("CDS_DATASET", "reanalysis-era5-single-levels"),
		CDSTimeout:      cdsTimeout,
		CDSMaxRetries:   maxRetries,
		CDSPollInterval: pollInterval,
		PSMSLBaseURL:    strings.TrimRight(EnvOrDefault("PSMSL_BASE_URL", "https://psmsl.org/data/obtaining"), "/"),
		PSMSLTimeout:    psmslTimeout,
		CatalogPath:     EnvOrDefault("CATALOG_PATH", filepath.Join(dataDir, "catalog.db")),
		KafkaEnabled:    kafkaEnabled,
		KafkaBrokers:    brokers,
		KafkaTopic:      EnvOrDefault("KAFKA_TOPIC", "climate-artifacts"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		MinSamples:      minSamples,
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or text", cfg.LogFormat)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

// RequireCDSKey reports a missing API key for commands that talk to the CDS.
func (c *Config) RequireCDSKey() error {
	if c.CDSKey == "" {
		return errors.New("CDS_API_KEY is required")
	}
	return nil
}

// EnvOrDefault returns the value of key or fallback when unset or empty.
func EnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
