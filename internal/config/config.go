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

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
)

// Config holds all configuration for the application
type Config struct {
	Canvas      CanvasConfig  `yaml:"canvas"`
	Notion      NotionConfig  `yaml:"notion"`
	Logging     LoggingConfig `yaml:"logging"`
	Storage     StorageConfig `yaml:"storage"`
	Server      ServerConfig  `yaml:"server"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// CanvasConfig holds source API settings and the current-term filter
type CanvasConfig struct {
	APIKey        string `yaml:"api_key"`
	Domain        string `yaml:"domain"`
	TermYear      string `yaml:"term_year"`
	TermSession   string `yaml:"term_session"`
	ExcludePrefix string `yaml:"exclude_prefix"`
}

// BaseURL returns the REST root for the configured Canvas host
func (c CanvasConfig) BaseURL() string {
	return fmt.Sprintf("https://%s/api/v1", c.Domain)
}

// NotionConfig holds destination API settings
type NotionConfig struct {
	APIKey     string `yaml:"api_key"`
	DatabaseID string `yaml:"database_id"`
	BaseURL    string `yaml:"base_url"`
	Version    string `yaml:"version"`
}

// LoggingConfig holds logger settings. An empty File disables the log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Pretty bool   `yaml:"pretty"`
}

// StorageConfig holds run-report storage settings
type StorageConfig struct {
	Type            string `yaml:"type"` // "none", "dynamodb", "mongodb", "postgresql"
	Region          string `yaml:"region"`
	TableName       string `yaml:"table_name"`
	Endpoint        string `yaml:"endpoint"` // Custom endpoint for local DynamoDB
	MongoDBURI      string `yaml:"mongodb_uri"`
	MongoDBDatabase string `yaml:"mongodb_database"`
	PostgresURI     string `yaml:"postgres_uri"`
}

// ServerConfig holds status server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Notion: NotionConfig{
			BaseURL: "https://api.notion.com",
			Version: "2022-06-28",
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "canvas_notion_sync.log",
			Pretty: true,
		},
		Storage: StorageConfig{
			Type:            "none",
			Region:          "us-west-2",
			TableName:       "sync_runs",
			MongoDBDatabase: "canvas_notion_sync",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an optional
// .env file and the environment, in increasing order of precedence. Missing files
// are skipped. Load does not validate required settings; see Validate.
func Load(configPath, envFile string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Canvas.APIKey = getEnv("CANVAS_API_KEY", cfg.Canvas.APIKey)
	cfg.Canvas.Domain = getEnv("CANVAS_DOMAIN", cfg.Canvas.Domain)
	cfg.Canvas.TermYear = getEnv("CANVAS_TERM_YEAR", cfg.Canvas.TermYear)
	cfg.Canvas.TermSession = getEnv("CANVAS_TERM_SESSION", cfg.Canvas.TermSession)
	cfg.Canvas.ExcludePrefix = getEnv("CANVAS_EXCLUDE_PREFIX", cfg.Canvas.ExcludePrefix)

	cfg.Notion.APIKey = getEnv("NOTION_API_KEY", cfg.Notion.APIKey)
	cfg.Notion.DatabaseID = getEnv("NOTION_DATABASE_ID", cfg.Notion.DatabaseID)
	cfg.Notion.BaseURL = getEnv("NOTION_BASE_URL", cfg.Notion.BaseURL)
	cfg.Notion.Version = getEnv("NOTION_VERSION", cfg.Notion.Version)

	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Pretty = getEnvBool("LOG_PRETTY", cfg.Logging.Pretty)
	if value, ok := os.LookupEnv("LOG_FILE"); ok {
		// an explicitly empty LOG_FILE turns the file sink off
		cfg.Logging.File = value
	}

	cfg.Storage.Type = getEnv("STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.Region = getEnv("AWS_REGION", cfg.Storage.Region)
	cfg.Storage.TableName = getEnv("TABLE_NAME", cfg.Storage.TableName)
	cfg.Storage.Endpoint = getEnv("DYNAMODB_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.MongoDBURI = getEnv("MONGODB_URI", cfg.Storage.MongoDBURI)
	cfg.Storage.MongoDBDatabase = getEnv("MONGODB_DATABASE", cfg.Storage.MongoDBDatabase)
	cfg.Storage.PostgresURI = getEnv("POSTGRES_URI", cfg.Storage.PostgresURI)

	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
}

// Validate reports every required sync setting that is absent or blank
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"CANVAS_API_KEY", c.Canvas.APIKey},
		{"CANVAS_DOMAIN", c.Canvas.Domain},
		{"NOTION_API_KEY", c.Notion.APIKey},
		{"NOTION_DATABASE_ID", c.Notion.DatabaseID},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
