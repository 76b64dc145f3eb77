package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Features  FeatureFlags
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Enabled turns the divergence journal on; without it divergences are
	// only logged.
	Enabled bool
}

type JWTConfig struct {
	Secret string
}

// RateLimitConfig applies to authenticated routes and needs Redis.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// FeatureFlags are the store-migration switches, one pair per entity type.
// They are read once at startup.
type FeatureFlags struct {
	UseMongoForProducts  bool
	DualWriteProducts    bool
	UseMongoForCarts     bool
	DualWriteCarts       bool
	UseMongoForAddresses bool
	DualWriteAddresses   bool
}

func Load() *Config {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "storefront")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("RATE_LIMIT_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)

	// Absent flags mean relational store only, no dual write
	for _, key := range featureKeys {
		v.SetDefault(key, false)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DATABASE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Enabled:  v.GetBool("REDIS_ENABLED"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Features: loadFeatureFlags(v),
	}
}

var featureKeys = []string{
	"FEATURE_USE_MONGO_FOR_PRODUCTS",
	"FEATURE_DUAL_WRITE_PRODUCTS",
	"FEATURE_USE_MONGO_FOR_CARTS",
	"FEATURE_DUAL_WRITE_CARTS",
	"FEATURE_USE_MONGO_FOR_ADDRESSES",
	"FEATURE_DUAL_WRITE_ADDRESSES",
}

func loadFeatureFlags(v *viper.Viper) FeatureFlags {
	return FeatureFlags{
		UseMongoForProducts:  v.GetBool("FEATURE_USE_MONGO_FOR_PRODUCTS"),
		DualWriteProducts:    v.GetBool("FEATURE_DUAL_WRITE_PRODUCTS"),
		UseMongoForCarts:     v.GetBool("FEATURE_USE_MONGO_FOR_CARTS"),
		DualWriteCarts:       v.GetBool("FEATURE_DUAL_WRITE_CARTS"),
		UseMongoForAddresses: v.GetBool("FEATURE_USE_MONGO_FOR_ADDRESSES"),
		DualWriteAddresses:   v.GetBool("FEATURE_DUAL_WRITE_ADDRESSES"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
