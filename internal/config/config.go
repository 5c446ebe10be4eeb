package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Embedding  EmbeddingConfig
	Database   DatabaseConfig
	Verify     VerifyConfig
	Web        WebConfig
	Thresholds ThresholdsConfig
}

type EmbeddingConfig struct {
	URL     string // face embedding server, defaults to http://localhost:8001
	Model   string // model name recorded with enrollments, defaults to buffalo_l
	Dim     int    // embedding dimensionality, defaults to 512 (ArcFace)
	MaxEdge int    // images are downscaled to this edge before upload (default 1280)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MariaDBDSN   string // alternate MariaDB backend (e.g., faceauth:secret@tcp(db:3306)/faceauth)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	HNSWPath     string // Path to persist the HNSW index (optional, if empty index is rebuilt on startup)
}

type VerifyConfig struct {
	Threshold       float64 // similarity cutoff, defaults per profile
	MaxEnrollImages int     // defaults to 5
	MaxUploadBytes  int64   // per-image upload limit, defaults to 10 MiB
}

type WebConfig struct {
	Host     string
	Port     int
	APIToken string // optional bearer token; empty disables API auth
}

type ThresholdsConfig struct {
	Profiles map[string]float64 `yaml:"profiles"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

const defaultMaxUploadBytes = 10 << 20 // matches the embedding server's own limit

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	// SIMILARITY_THRESHOLD wins over THRESHOLD_PROFILE when both are set.
	threshold := thresholds.Profiles["normal"]
	if threshold == 0 {
		threshold = 0.6
	}
	if profile := os.Getenv("THRESHOLD_PROFILE"); profile != "" {
		if t, ok := thresholds.Profiles[profile]; ok {
			threshold = t
		}
	}
	threshold = envFloat("SIMILARITY_THRESHOLD", threshold)

	return &Config{
		Embedding: EmbeddingConfig{
			URL:     os.Getenv("EMBEDDING_URL"),
			Model:   os.Getenv("EMBEDDING_MODEL"),
			Dim:     envInt("EMBEDDING_DIM", 512),
			MaxEdge: envInt("MAX_IMAGE_EDGE", 1280),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWPath:     os.Getenv("HNSW_INDEX_PATH"),
		},
		Verify: VerifyConfig{
			Threshold:       threshold,
			MaxEnrollImages: envInt("MAX_ENROLL_IMAGES", 5),
			MaxUploadBytes:  int64(envInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		},
		Web: WebConfig{
			Host:     os.Getenv("WEB_HOST"),
			Port:     envInt("WEB_PORT", 8080),
			APIToken: os.Getenv("API_TOKEN"),
		},
		Thresholds: thresholds,
	}
}
