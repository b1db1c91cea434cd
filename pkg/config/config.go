package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Matching MatchingConfig
	Pricing  PricingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MatchingConfig holds pool matching tunables
type MatchingConfig struct {
	GlobalMaxDetourKm  float64
	MaxPassengers      int
	MaxLuggage         int
	CandidatePoolLimit int
	CacheTTL           time.Duration
	BatchInterval      time.Duration
	BatchMinAge        time.Duration
}

// PricingConfig holds fare calculation tunables
type PricingConfig struct {
	BaseFare           float64
	PerKmRate          float64
	SurgeMax           float64
	BaseDiscountPct    float64
	MaxDiscountPct     float64
	DemandThreshold    int
	DemandWindow       time.Duration
	DemandRefreshEvery time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "poolmatching"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Matching: MatchingConfig{
			GlobalMaxDetourKm:  getEnvAsFloat("MATCHING_GLOBAL_MAX_DETOUR_KM", 5.0),
			MaxPassengers:      getEnvAsInt("MATCHING_MAX_PASSENGERS", 4),
			MaxLuggage:         getEnvAsInt("MATCHING_MAX_LUGGAGE", 8),
			CandidatePoolLimit: getEnvAsInt("MATCHING_CANDIDATE_POOL_LIMIT", 50),
			CacheTTL:           getEnvAsDuration("MATCHING_CACHE_TTL", 2*time.Minute),
			BatchInterval:      getEnvAsDuration("MATCHING_BATCH_INTERVAL", 30*time.Second),
			BatchMinAge:        getEnvAsDuration("MATCHING_BATCH_MIN_AGE", time.Minute),
		},
		Pricing: PricingConfig{
			BaseFare:           getEnvAsFloat("PRICING_BASE_FARE", 50.0),
			PerKmRate:          getEnvAsFloat("PRICING_PER_KM_RATE", 15.0),
			SurgeMax:           getEnvAsFloat("PRICING_SURGE_MAX", 2.0),
			BaseDiscountPct:    getEnvAsFloat("PRICING_BASE_DISCOUNT_PCT", 15.0),
			MaxDiscountPct:     getEnvAsFloat("PRICING_MAX_DISCOUNT_PCT", 30.0),
			DemandThreshold:    getEnvAsInt("PRICING_DEMAND_THRESHOLD", 50),
			DemandWindow:       getEnvAsDuration("PRICING_DEMAND_WINDOW", 15*time.Minute),
			DemandRefreshEvery: getEnvAsDuration("PRICING_DEMAND_REFRESH_EVERY", time.Minute),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
