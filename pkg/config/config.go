package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration.
type Config struct {
	AppEnv   string
	LogLevel slog.Level

	Server    ServerConfig
	Database  DatabaseConfig
	Dashboard DashboardConfig
	MQTT      MQTTConfig

	// APIURL is the base URL used by the client commands (reading, watch).
	APIURL string
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// DatabaseConfig describes the PostgreSQL connection pool.
type DatabaseConfig struct {
	URL             string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DashboardConfig struct {
	PollInterval time.Duration
	HistorySize  int
	Locations    []string
	RequireAll   bool
}

// MQTTConfig enables the MQTT ingestion subscriber when Broker is set.
type MQTTConfig struct {
	Broker   string
	Port     int
	Topic    string
	ClientID string
}

// Enabled reports whether a broker has been configured.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

var validSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}

// LoadFromEnv reads configuration from the process environment. A .env file in
// the working directory is loaded first when present; variables already set in
// the environment take precedence over it.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	appEnv := getEnv("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	sslMode := getEnv("DB_SSLMODE", "verify-full")
	if !contains(validSSLModes, sslMode) {
		return Config{}, fmt.Errorf("invalid DB_SSLMODE %q (allowed: %s)", sslMode, strings.Join(validSSLModes, ", "))
	}

	maxOpenConns, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := getEnvInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}

	pollInterval, err := getEnvDuration("POLL_INTERVAL", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	if pollInterval <= 0 {
		return Config{}, fmt.Errorf("invalid POLL_INTERVAL %q: must be positive", pollInterval)
	}
	historySize, err := getEnvInt("HISTORY_SIZE", 10)
	if err != nil {
		return Config{}, err
	}
	if historySize < 1 {
		return Config{}, fmt.Errorf("invalid HISTORY_SIZE %d: must be at least 1", historySize)
	}
	requireAll, err := strconv.ParseBool(getEnv("DASHBOARD_REQUIRE_ALL", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DASHBOARD_REQUIRE_ALL: %w", err)
	}

	mqttPort, err := getEnvInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:   appEnv,
		LogLevel: level,
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8059"),
			AllowedOrigins: splitList(getEnv("SERVER_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			SSLMode:         sslMode,
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		Dashboard: DashboardConfig{
			PollInterval: pollInterval,
			HistorySize:  historySize,
			Locations:    splitList(getEnv("DASHBOARD_LOCATIONS", "centro,porteriaderecha,porteriaizquierda")),
			RequireAll:   requireAll,
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			Port:     mqttPort,
			Topic:    getEnv("MQTT_TOPIC", "stadium/humidity"),
			ClientID: getEnv("MQTT_CLIENT_ID", "humidityboard"),
		},
		APIURL: strings.TrimRight(getEnv("API_URL", "http://localhost:8059"), "/"),
	}, nil
}

// DSN returns the connection string handed to the driver. The configured
// sslmode is applied only when the URL does not already carry one.
func (c DatabaseConfig) DSN() string {
	if c.SSLMode == "" || c.URL == "" {
		return c.URL
	}

	if strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://") {
		u, err := url.Parse(c.URL)
		if err != nil {
			return c.URL
		}
		q := u.Query()
		if q.Get("sslmode") == "" {
			q.Set("sslmode", c.SSLMode)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}

	// key=value form
	if strings.Contains(c.URL, "sslmode=") {
		return c.URL
	}
	return c.URL + " sslmode=" + c.SSLMode
}

func parseLogLevel(s string) (slog.Level, error) {
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

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
