package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string
	LogLevel     string
	LogFormat    string

	SPARQLEndpoint string
	APIEndpoint    string
	UserAgent      string
	HTTPTimeout    time.Duration

	BatchSize         int
	MaxAttempts       int
	AllocationTimeout time.Duration
	LookupConcurrency int
	SessionTTL        time.Duration
	PollInterval      time.Duration

	EnableSessionExpirer bool
	EnableOutboxRelay    bool

	Languages []LanguageSeed
}

// LanguageSeed is one language row from the YAML overlay. Activities maps an
// activity name to its variant code ("" when none).
type LanguageSeed struct {
	Code       string            `yaml:"code"`
	QID        string            `yaml:"qid"`
	Name       string            `yaml:"name"`
	Activities map[string]string `yaml:"activities"`
}

type fileOverlay struct {
	SPARQLEndpoint    string         `yaml:"sparql_endpoint"`
	APIEndpoint       string         `yaml:"api_endpoint"`
	UserAgent         string         `yaml:"user_agent"`
	HTTPTimeout       string         `yaml:"http_timeout"`
	BatchSize         int            `yaml:"batch_size"`
	MaxAttempts       int            `yaml:"max_attempts"`
	AllocationTimeout string         `yaml:"allocation_timeout"`
	LookupConcurrency int            `yaml:"lookup_concurrency"`
	SessionTTL        string         `yaml:"session_ttl"`
	Languages         []LanguageSeed `yaml:"languages"`
}

// Load reads envFile (when present), the environment, then the YAML file named
// by CONFIG_FILE. An empty envFile falls back to ".env".
func Load() (Config, error) {
	return LoadFrom("")
}

func LoadFrom(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "lexcontrib"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	cfg := Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,
		LogLevel:     envString("LOG_LEVEL", "info"),
		LogFormat:    envString("LOG_FORMAT", "json"),

		SPARQLEndpoint: envString("CORPUS_SPARQL_ENDPOINT", "https://query.wikidata.org/sparql"),
		APIEndpoint:    envString("CORPUS_API_ENDPOINT", "https://www.wikidata.org/w/api.php"),
		UserAgent:      envString("CORPUS_USER_AGENT", "lexcontrib/1.0"),
		HTTPTimeout:    envDuration("CORPUS_HTTP_TIMEOUT", 20*time.Second),

		BatchSize:         envInt("ALLOCATION_BATCH_SIZE", 10),
		MaxAttempts:       envInt("ALLOCATION_MAX_ATTEMPTS", 5),
		AllocationTimeout: envDuration("ALLOCATION_TIMEOUT", 30*time.Second),
		LookupConcurrency: envInt("DETAIL_LOOKUP_CONCURRENCY", 8),
		SessionTTL:        envDuration("SESSION_TTL", 24*time.Hour),
		PollInterval:      envDuration("WORKER_POLL_INTERVAL", 2*time.Second),

		EnableSessionExpirer: envBool("ENABLE_SESSION_EXPIRER", true),
		EnableOutboxRelay:    envBool("ENABLE_OUTBOX_RELAY", true),
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if cfg.BatchSize <= 0 || cfg.MaxAttempts <= 0 {
		return Config{}, errors.New("allocation batch size and max attempts must be positive")
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if overlay.SPARQLEndpoint != "" {
		cfg.SPARQLEndpoint = overlay.SPARQLEndpoint
	}
	if overlay.APIEndpoint != "" {
		cfg.APIEndpoint = overlay.APIEndpoint
	}
	if overlay.UserAgent != "" {
		cfg.UserAgent = overlay.UserAgent
	}
	if overlay.BatchSize > 0 {
		cfg.BatchSize = overlay.BatchSize
	}
	if overlay.MaxAttempts > 0 {
		cfg.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.LookupConcurrency > 0 {
		cfg.LookupConcurrency = overlay.LookupConcurrency
	}
	for _, duration := range []struct {
		raw    string
		target *time.Duration
	}{
		{overlay.HTTPTimeout, &cfg.HTTPTimeout},
		{overlay.AllocationTimeout, &cfg.AllocationTimeout},
		{overlay.SessionTTL, &cfg.SessionTTL},
	} {
		if duration.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(duration.raw)
		if err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		*duration.target = parsed
	}
	cfg.Languages = append(cfg.Languages, overlay.Languages...)
	return nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
