package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr           string
	ModelsDir      string
	MetricsDir     string
	RegistryDir    string
	PrimaryMetric  string
	CandidateNames []string
	LockWait       time.Duration

	// Optional postgres registry state backend. When unset, the file backend
	// under RegistryDir is used.
	DatabaseURL string

	// Optional promotion-event publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional off-site archival of registry copies.
	S3Bucket string
	S3Prefix string

	// Write auth for the HTTP surface.
	JWTSecret       string
	AllowDebugToken bool
	DebugToken      string
}

const (
	defaultAddr          = ":8072"
	defaultModelsDir     = "artifacts/models"
	defaultMetricsDir    = "artifacts/metrics"
	defaultRegistryDir   = "artifacts/registry"
	defaultPrimaryMetric = "pr_auc"
	defaultCandidates    = "baseline_logreg,candidate_hgb"
	defaultLockWait      = 5 * time.Second
)

func Load() (Config, error) {
	cfg := Config{
		Addr:            getEnv("MODEL_REGISTRY_ADDR", defaultAddr),
		ModelsDir:       getEnv("MODEL_REGISTRY_MODELS_DIR", defaultModelsDir),
		MetricsDir:      getEnv("MODEL_REGISTRY_METRICS_DIR", defaultMetricsDir),
		RegistryDir:     getEnv("MODEL_REGISTRY_DIR", defaultRegistryDir),
		PrimaryMetric:   getEnv("MODEL_REGISTRY_PRIMARY_METRIC", defaultPrimaryMetric),
		CandidateNames:  splitList(getEnv("MODEL_REGISTRY_CANDIDATES", defaultCandidates)),
		LockWait:        getDuration("MODEL_REGISTRY_LOCK_WAIT", defaultLockWait),
		DatabaseURL:     firstNonEmpty(os.Getenv("MODEL_REGISTRY_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		KafkaBrokers:    splitList(os.Getenv("MODEL_REGISTRY_KAFKA_BROKERS")),
		KafkaTopic:      getEnv("MODEL_REGISTRY_KAFKA_TOPIC", "model-promotions"),
		S3Bucket:        os.Getenv("MODEL_REGISTRY_S3_BUCKET"),
		S3Prefix:        os.Getenv("MODEL_REGISTRY_S3_PREFIX"),
		JWTSecret:       os.Getenv("MODEL_REGISTRY_JWT_SECRET"),
		AllowDebugToken: getBool("MODEL_REGISTRY_ALLOW_DEBUG_TOKEN", false),
		DebugToken:      os.Getenv("MODEL_REGISTRY_DEBUG_TOKEN"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
