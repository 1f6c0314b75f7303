package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	SSEKMSKeyID        string
	DatabaseURL        string
	RedisURL           string
	SQSQueueURL        string
	NotifyQueueURL     string
	Env                string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	AdminEmails        []string
	MaxUploadMB        int
	Worker             Worker
}

// Worker tunes the long-running queue consumer.
type Worker struct {
	Concurrency       int
	VisibilitySeconds int
	ShutdownTimeout   time.Duration
}

// Load reads .env files (without overriding the real environment) and then
// builds a Config from the process environment.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")
	cfg := FromLookup(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		log.Printf("config: %v", err)
	}
	return cfg
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) Config {
	src := source(lookup)
	return Config{
		Port:               src.str("PORT", "8080"),
		CORSAllowOrigin:    src.list("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		ObjectStoreType:    normalizeStoreType(src.str("OBJECT_STORE", "local")),
		LocalStoreDir:      src.str("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          src.str("AWS_REGION", ""),
		S3Bucket:           src.str("S3_BUCKET", ""),
		S3Prefix:           src.str("S3_PREFIX", ""),
		SSEKMSKeyID:        src.str("SSE_KMS_KEY_ID", ""),
		DatabaseURL:        src.str("DATABASE_URL", ""),
		RedisURL:           src.str("REDIS_URL", ""),
		SQSQueueURL:        src.str("SQS_QUEUE_URL", ""),
		NotifyQueueURL:     src.str("NOTIFY_SQS_QUEUE_URL", ""),
		Env:                normalizeEnv(src.str("ENV", "dev")),
		GoogleClientID:     src.str("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: src.str("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  src.str("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      src.str("UI_REDIRECT_URL", ""),
		AdminEmails:        src.list("ADMIN_EMAILS", "", strings.ToLower),
		MaxUploadMB:        src.positive("MAX_UPLOAD_MB", 20),
		Worker: Worker{
			Concurrency:       src.positive("WORKER_CONCURRENCY", 4),
			VisibilitySeconds: src.positive("SQS_VISIBILITY_TIMEOUT_SECONDS", 300),
			ShutdownTimeout:   time.Duration(src.positive("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
		},
	}
}

// Validate reports settings that cannot work together. Dev-like
// environments tolerate a missing database.
func (c Config) Validate() error {
	var errs []error
	if !c.IsDevLike() && c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required in %s", c.Env))
	}
	if c.ObjectStoreType == "s3" && c.S3Bucket == "" {
		errs = append(errs, errors.New("OBJECT_STORE=s3 requires S3_BUCKET"))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}
	return errors.Join(errs...)
}

// IsDevLike reports whether env allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: ignoring %s: %v", path, err)
		}
	}
}

type source func(string) (string, bool)

func (s source) str(key, def string) string {
	if raw, ok := s(key); ok {
		if raw = strings.TrimSpace(raw); raw != "" {
			return raw
		}
	}
	return def
}

func (s source) positive(key string, def int) int {
	raw := s.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return v
}

func (s source) list(key, def string, maps ...func(string) string) []string {
	var out []string
	for _, part := range strings.Split(s.str(key, def), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, m := range maps {
			part = m(part)
		}
		out = append(out, part)
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging", "stage":
		return "staging"
	case "local":
		return "local"
	}
	return "dev"
}

func normalizeStoreType(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "s3") {
		return "s3"
	}
	return "local"
}
