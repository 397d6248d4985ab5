package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	ConversationTTL  time.Duration
	AWSRegion        string
	AWSAccessKeyID   string
	AWSSecretKey     string
	AWSEndpoint      string
	LLMProvider      string
	BedrockModelID   string
	GeminiAPIKey     string
	GeminiModelID    string
	LLMMaxTokens     int
	LLMTemperature   float64
	HospitalName     string
	HospitalTimezone string

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Scheduling engine
	WorkingHoursStart      string
	WorkingHoursEnd        string
	SlotGranularityMinutes int
	SlotCapacity           int
	HorizonDays            int
	SchedulingTablesPath   string
	LearnedEstimatorPath   string
	DefaultRecommendations int

	// Orchestration
	MaxIterations   int
	ToolPoolSize    int
	ToolCallTimeout time.Duration
	TurnTimeout     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		ConversationTTL:  getEnvAsDuration("CONVERSATION_TTL", 24*time.Hour),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpoint:      getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		LLMProvider:      strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMMaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature:   getEnvAsFloat("LLM_TEMPERATURE", 0),
		HospitalName:     getEnv("HOSPITAL_NAME", "General Hospital"),
		HospitalTimezone: getEnv("HOSPITAL_TIMEZONE", "UTC"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		WorkingHoursStart:      getEnv("WORKING_HOURS_START", "09:00"),
		WorkingHoursEnd:        getEnv("WORKING_HOURS_END", "17:00"),
		SlotGranularityMinutes: getEnvAsInt("SLOT_GRANULARITY_MINUTES", 30),
		SlotCapacity:           getEnvAsInt("SLOT_CAPACITY", 1),
		HorizonDays:            getEnvAsInt("SCHEDULING_HORIZON_DAYS", 90),
		SchedulingTablesPath:   getEnv("SCHEDULING_TABLES_PATH", ""),
		LearnedEstimatorPath:   getEnv("LEARNED_ESTIMATOR_PATH", ""),
		DefaultRecommendations: getEnvAsInt("DEFAULT_RECOMMENDATIONS", 5),

		MaxIterations:   getEnvAsInt("ORCHESTRATOR_MAX_ITERATIONS", 4),
		ToolPoolSize:    getEnvAsInt("TOOL_POOL_SIZE", 4),
		ToolCallTimeout: getEnvAsDuration("TOOL_CALL_TIMEOUT", 10*time.Second),
		TurnTimeout:     getEnvAsDuration("TURN_TIMEOUT", 60*time.Second),
	}
}

// Location resolves HospitalTimezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.HospitalTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.HospitalTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
