package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Firebase FirebaseConfig
	AI       AIConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Sync     SyncConfig
	Video    VideoConfig
	Log      LogConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port     string
	AuthMode string // "firebase" or "optional"
}

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int
	Migrate  bool
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
	ServiceName string
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
	CredentialsJSON string
	StorageBucket   string
}

type AIConfig struct {
	APIKey     string
	Backend    string // "gemini" or "vertex"
	Project    string
	Location   string
	TextModel  string
	ImageModel string
	TTSModel   string
	VideoModel string
	RateLimit  float64
	RateBurst  int
	// PromptsFile overrides the embedded prompt catalog.
	PromptsFile string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Backend     string // firestore, postgres, memory
	BlobBackend string // firebase, s3, memory
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
}

type SyncConfig struct {
	Concurrency string // optimistic or last_write_wins
	SessionTTL  time.Duration
}

type VideoConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	Timeout      time.Duration
}

type LogConfig struct {
	File string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			AuthMode: getEnv("AUTH_MODE", "firebase"),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "aetherium"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			Migrate:  getEnvAsBool("DB_MIGRATE", false),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			ServiceName: getEnv("SERVICE_NAME", "aetherium-api"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			CredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
			StorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		},
		AI: AIConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Backend:     getEnv("AI_BACKEND", "gemini"),
			Project:     getEnv("AI_GCP_PROJECT", ""),
			Location:    getEnv("AI_GCP_LOCATION", "us-central1"),
			TextModel:   getEnv("AI_TEXT_MODEL", "gemini-2.5-flash"),
			ImageModel:  getEnv("AI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation"),
			TTSModel:    getEnv("AI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
			VideoModel:  getEnv("AI_VIDEO_MODEL", "veo-2.0-generate-001"),
			RateLimit:   getEnvAsFloat("AI_RATE_LIMIT", 2),
			RateBurst:   getEnvAsInt("AI_RATE_BURST", 4),
			PromptsFile: getEnv("AI_PROMPTS_FILE", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORE_BACKEND", "firestore"),
			BlobBackend: getEnv("BLOB_BACKEND", "firebase"),
			S3Bucket:    getEnv("S3_BUCKET", ""),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		},
		Sync: SyncConfig{
			Concurrency: getEnv("SYNC_CONCURRENCY", "optimistic"),
			SessionTTL:  getEnvAsDuration("SYNC_SESSION_TTL", 30*time.Minute),
		},
		Video: VideoConfig{
			PollInterval: getEnvAsDuration("VIDEO_POLL_INTERVAL", 5*time.Second),
			MaxAttempts:  getEnvAsInt("VIDEO_POLL_MAX_ATTEMPTS", 60),
			Timeout:      getEnvAsDuration("VIDEO_POLL_TIMEOUT", 6*time.Minute),
		},
		Log: LogConfig{
			File: getEnv("LOG_FILE", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Server.AuthMode {
	case "firebase", "optional":
	default:
		return fmt.Errorf("AUTH_MODE must be firebase or optional, got %q", c.Server.AuthMode)
	}

	switch c.Storage.Backend {
	case "firestore":
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
	case "postgres":
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("DB_DSN or DB_HOST is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be firestore, postgres or memory, got %q", c.Storage.Backend)
	}

	switch c.Storage.BlobBackend {
	case "firebase":
		if c.Firebase.StorageBucket == "" {
			return fmt.Errorf("FIREBASE_STORAGE_BUCKET is required for the firebase blob backend")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 blob backend")
		}
	case "memory":
	default:
		return fmt.Errorf("BLOB_BACKEND must be firebase, s3 or memory, got %q", c.Storage.BlobBackend)
	}

	switch c.AI.Backend {
	case "gemini":
		if c.AI.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case "vertex":
		if c.AI.Project == "" {
			return fmt.Errorf("AI_GCP_PROJECT is required for the vertex backend")
		}
	default:
		return fmt.Errorf("AI_BACKEND must be gemini or vertex, got %q", c.AI.Backend)
	}

	switch c.Sync.Concurrency {
	case "optimistic", "last_write_wins":
	default:
		return fmt.Errorf("SYNC_CONCURRENCY must be optimistic or last_write_wins, got %q", c.Sync.Concurrency)
	}

	if c.Video.MaxAttempts <= 0 {
		return fmt.Errorf("VIDEO_POLL_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// Warnings lists settings that are valid but unsafe for the environment.
func (c *Config) Warnings() []string {
	var out []string
	if c.App.Environment == "production" && c.Server.AuthMode == "optional" {
		out = append(out, "AUTH_MODE=optional in production: requests without a token are trusted by their X-User-Id header")
	}
	return out
}

// NeedsFirebaseApp reports whether any configured component talks to Firebase.
func (c *Config) NeedsFirebaseApp() bool {
	return c.Server.AuthMode == "firebase" ||
		c.Storage.Backend == "firestore" ||
		c.Storage.BlobBackend == "firebase"
}

// PostgresDSN returns DB_DSN, or a DSN built from the DB_* parts.
func (c *DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
