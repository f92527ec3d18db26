package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	AIAPIKey       string
	GenModel       string
	ClassifyModel  string
	EmbedModel     string
	SessionSecret  string
	MaxUploadBytes int64
	CacheTTLSecs   int
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string
	Port           string
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AIAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GenModel:       getEnv("GEN_MODEL", "gemini-1.5-flash"),
		ClassifyModel:  getEnv("CLASSIFY_MODEL", "gemini-1.5-flash"),
		EmbedModel:     getEnv("EMBED_MODEL", "text-embedding-004"),
		SessionSecret:  getEnv("SESSION_SECRET", ""),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),
		CacheTTLSecs:   getEnvInt("CACHE_TTL_SECONDS", 300),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", ""),
		Port:           getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET not set")
	}

	return cfg
}

// ArchiveEnabled reports whether S3 archival of original uploads is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
