package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"RailSentinelAPI/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	MQTT     MQTTConfig
	Engine   EngineConfig
	Feed     FeedConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Retention       time.Duration
}

type MQTTConfig struct {
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	FleetTopic     string
	SignalTopic    string
	QoS            byte
	RetainMessages bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

// EngineConfig tunes the evaluation pipeline. The sub-deadlines must fit
// inside CycleBudget; Validate enforces that.
type EngineConfig struct {
	CycleInterval      time.Duration
	CycleBudget        time.Duration
	RuleDeadline       time.Duration
	PredictorDeadline  time.Duration
	CongestionDeadline time.Duration
	PredictionHorizon  time.Duration
	ForecastHorizon    time.Duration
	OverloadThreshold  float64
	MinSeparationM     float64
	HardFloorM         float64
	SpeedOverageFactor float64
}

// FeedConfig bounds the inbound position/signal feed.
type FeedConfig struct {
	TopologyFile   string
	LateWindow     time.Duration
	SilenceTimeout time.Duration
}

type SecurityConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level     logger.Level
	Mode      logger.Mode
	FilePath  string
	UseColors bool
}

var requiredEnvVars = []string{
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
	"MQTT_BROKER",
	"MQTT_PORT",
	"TOPOLOGY_FILE",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	if err := validateRequired(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		MQTT:     loadMQTTConfig(),
		Engine:   loadEngineConfig(),
		Feed:     loadFeedConfig(),
		Security: loadSecurityConfig(),
		Logging:  loadLoggingConfig(),
	}

	return cfg, nil
}

func validateRequired() error {
	var missing []string

	for _, key := range requiredEnvVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            getEnvAsInt("SERVER_PORT", 8080),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "10s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "rail_sentinel"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "rail_sentinel"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
		Retention:       getEnvAsDuration("DB_RETENTION", "720h"),
	}
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:         getEnv("MQTT_BROKER", "localhost"),
		Port:           getEnvAsInt("MQTT_PORT", 1883),
		ClientID:       getEnv("MQTT_CLIENT_ID", "rail-sentinel-backend"),
		Username:       getEnv("MQTT_USERNAME", ""),
		Password:       getEnv("MQTT_PASSWORD", ""),
		FleetTopic:     getEnv("MQTT_FLEET_TOPIC", "rail/fleet/+/position"),
		SignalTopic:    getEnv("MQTT_SIGNAL_TOPIC", "rail/signals/+/state"),
		QoS:            byte(getEnvAsInt("MQTT_QOS", 1)),
		RetainMessages: getEnvAsBool("MQTT_RETAIN", false),
		KeepAlive:      getEnvAsDuration("MQTT_KEEP_ALIVE", "60s"),
		ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
		AutoReconnect:  getEnvAsBool("MQTT_AUTO_RECONNECT", true),
	}
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		CycleInterval:      getEnvAsDuration("ENGINE_CYCLE_INTERVAL", "2s"),
		CycleBudget:        getEnvAsDuration("ENGINE_CYCLE_BUDGET", "5s"),
		RuleDeadline:       getEnvAsDuration("ENGINE_RULE_DEADLINE", "1500ms"),
		PredictorDeadline:  getEnvAsDuration("ENGINE_PREDICTOR_DEADLINE", "2s"),
		CongestionDeadline: getEnvAsDuration("ENGINE_CONGESTION_DEADLINE", "1s"),
		PredictionHorizon:  getEnvAsDuration("ENGINE_PREDICTION_HORIZON", "5m"),
		ForecastHorizon:    getEnvAsDuration("ENGINE_FORECAST_HORIZON", "30m"),
		OverloadThreshold:  getEnvAsFloat("ENGINE_OVERLOAD_THRESHOLD", 0.8),
		MinSeparationM:     getEnvAsFloat("ENGINE_MIN_SEPARATION_M", 1000),
		HardFloorM:         getEnvAsFloat("ENGINE_HARD_FLOOR_M", 200),
		SpeedOverageFactor: getEnvAsFloat("ENGINE_SPEED_OVERAGE_FACTOR", 1.2),
	}
}

func loadFeedConfig() FeedConfig {
	return FeedConfig{
		TopologyFile:   getEnv("TOPOLOGY_FILE", "topology.json"),
		LateWindow:     getEnvAsDuration("FEED_LATE_WINDOW", "10s"),
		SilenceTimeout: getEnvAsDuration("FEED_SILENCE_TIMEOUT", "30s"),
	}
}

func loadSecurityConfig() SecurityConfig {
	origins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	methods := getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")

	return SecurityConfig{
		CORSAllowedOrigins: strings.Split(origins, ","),
		CORSAllowedMethods: strings.Split(methods, ","),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", true),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Mode:      logger.ParseMode(getEnv("LOG_MODE", "normal")),
		FilePath:  getEnv("LOG_FILE_PATH", ""),
		UseColors: getEnvAsBool("LOG_USE_COLORS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) GetMQTTBroker() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.Broker, c.MQTT.Port)
}

func (c *Config) Validate() error {
	var errors []string

	if c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD cannot be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}

	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errors = append(errors, "MQTT_PORT must be between 1 and 65535")
	}

	if c.Engine.CycleBudget <= 0 {
		errors = append(errors, "ENGINE_CYCLE_BUDGET must be positive")
	}

	if sum := c.Engine.RuleDeadline + c.Engine.PredictorDeadline + c.Engine.CongestionDeadline; sum >= c.Engine.CycleBudget {
		errors = append(errors, "engine sub-deadlines must sum to less than ENGINE_CYCLE_BUDGET")
	}

	if c.Engine.OverloadThreshold <= 0 || c.Engine.OverloadThreshold > 1 {
		errors = append(errors, "ENGINE_OVERLOAD_THRESHOLD must be in (0, 1]")
	}

	if c.Engine.HardFloorM >= c.Engine.MinSeparationM {
		errors = append(errors, "ENGINE_HARD_FLOOR_M must be below ENGINE_MIN_SEPARATION_M")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║            Rail Sentinel - Configuration                ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	fmt.Printf("Database:        %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	fmt.Printf("MQTT Broker:     %s:%d\n", c.MQTT.Broker, c.MQTT.Port)
	fmt.Printf("Topology:        %s\n", c.Feed.TopologyFile)
	fmt.Printf("Cycle:           every %v, budget %v\n", c.Engine.CycleInterval, c.Engine.CycleBudget)
	fmt.Println("──────────────────────────────────────────────────────────")
}
