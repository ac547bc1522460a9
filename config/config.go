package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StorageLocal = "local"
	StorageS3    = "s3"

	OCRNone       = "none"
	OCRDocumentAI = "documentai"
)

const (
	DefaultImagesSubDir     = "instituciones"
	DefaultThumbnailsSubDir = "miniaturas"
	DefaultCVSubDir         = "cv"
)

const (
	defaultImageQueueSize     = 100
	defaultNumImageWorkers    = 2
	defaultThumbnailMaxSize   = 300
	defaultMaxUploadMB        = 10
	defaultJWTExpirationHours = 24
	defaultKeywordLimit       = 6
	defaultActivityUp         = 70
	defaultActivityStable     = 40
	defaultRequestTimeout     = 30
)

type Config struct {
	Port    string
	LogMode string

	// relational store
	DatabaseDriver string
	DatabaseURL    string

	// blob storage for CVs and images
	StorageDriver    string
	MediaStoragePath string // root for the local driver
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3PathStyle      bool

	// image processing
	ThumbnailMaxSize int
	ImageQueueSize   int
	NumImageWorkers  int
	MaxUploadBytes   int64

	// auth
	JWTSecret     []byte
	JWTExpiration time.Duration

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration

	// aggregation / search tuning
	DemoPublications        bool
	KeywordLimit            int
	ActivityUpThreshold     int
	ActivityStableThreshold int

	// OCR
	OCRDriver           string
	DocumentAIProject   string
	DocumentAILocation  string
	DocumentAIProcessor string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) (int, error) {
	valStr := strings.TrimSpace(os.Getenv(envVar))
	if valStr == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		return 0, fmt.Errorf("invalid %s '%s': must be a positive integer", envVar, valStr)
	}
	return val, nil
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) (bool, error) {
	valStr := strings.TrimSpace(os.Getenv(envVar))
	if valStr == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("invalid %s '%s': %w", envVar, valStr, err)
	}
	return val, nil
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		LogMode:             getEnvOrDefault("LOG_MODE", "development"),
		DatabaseDriver:      strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DriverSQLite)),
		StorageDriver:       strings.ToLower(getEnvOrDefault("MEDIA_STORAGE_DRIVER", StorageLocal)),
		S3Bucket:            getEnvOrDefault("S3_BUCKET", ""),
		S3Region:            getEnvOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:          getEnvOrDefault("S3_ENDPOINT", ""),
		OCRDriver:           strings.ToLower(getEnvOrDefault("OCR_DRIVER", OCRNone)),
		DocumentAIProject:   getEnvOrDefault("DOCUMENTAI_PROJECT", ""),
		DocumentAILocation:  getEnvOrDefault("DOCUMENTAI_LOCATION", "us"),
		DocumentAIProcessor: getEnvOrDefault("DOCUMENTAI_PROCESSOR", ""),
	}

	switch cfg.DatabaseDriver {
	case DriverSQLite:
		cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "sei.db")
	case DriverPostgres:
		cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "")
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER '%s'", cfg.DatabaseDriver)
	}

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}
	cfg.MediaStoragePath = absMediaStorage

	switch cfg.StorageDriver {
	case StorageLocal:
	case StorageS3:
		if cfg.S3Bucket == "" {
			return Config{}, fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
		}
	default:
		return Config{}, fmt.Errorf("unsupported MEDIA_STORAGE_DRIVER '%s'", cfg.StorageDriver)
	}

	switch cfg.OCRDriver {
	case OCRNone:
	case OCRDocumentAI:
		if cfg.DocumentAIProject == "" || cfg.DocumentAIProcessor == "" {
			return Config{}, fmt.Errorf("DOCUMENTAI_PROJECT and DOCUMENTAI_PROCESSOR are required for the documentai OCR driver")
		}
	default:
		return Config{}, fmt.Errorf("unsupported OCR_DRIVER '%s'", cfg.OCRDriver)
	}

	if cfg.S3PathStyle, err = getEnvBoolOrDefault("S3_PATH_STYLE", false); err != nil {
		return Config{}, err
	}
	if cfg.DemoPublications, err = getEnvBoolOrDefault("DEMO_PUBLICATIONS", false); err != nil {
		return Config{}, err
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize, &cfg.ThumbnailMaxSize},
		{"IMAGE_QUEUE_SIZE", defaultImageQueueSize, &cfg.ImageQueueSize},
		{"NUM_IMAGE_WORKERS", defaultNumImageWorkers, &cfg.NumImageWorkers},
		{"KEYWORD_LIMIT", defaultKeywordLimit, &cfg.KeywordLimit},
		{"ACTIVITY_UP_THRESHOLD", defaultActivityUp, &cfg.ActivityUpThreshold},
		{"ACTIVITY_STABLE_THRESHOLD", defaultActivityStable, &cfg.ActivityStableThreshold},
	}
	for _, item := range ints {
		if *item.dst, err = getEnvIntOrDefault(item.key, item.def); err != nil {
			return Config{}, err
		}
	}
	if cfg.ActivityStableThreshold >= cfg.ActivityUpThreshold {
		return Config{}, fmt.Errorf("ACTIVITY_STABLE_THRESHOLD (%d) must be below ACTIVITY_UP_THRESHOLD (%d)", cfg.ActivityStableThreshold, cfg.ActivityUpThreshold)
	}

	maxUploadMB, err := getEnvIntOrDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20

	expHours, err := getEnvIntOrDefault("JWT_EXPIRATION_HOURS", defaultJWTExpirationHours)
	if err != nil {
		return Config{}, err
	}
	cfg.JWTExpiration = time.Duration(expHours) * time.Hour

	timeoutSec, err := getEnvIntOrDefault("REQUEST_TIMEOUT_SECONDS", defaultRequestTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout = time.Duration(timeoutSec) * time.Second

	secret := getEnvOrDefault("JWT_SECRET", "")
	if secret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWTSecret = []byte(secret)

	for _, origin := range strings.Split(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o := strings.TrimSpace(origin); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

// ImagesPath, ThumbnailsPath and CVPath are the local-driver directories for each asset type.
func (c Config) ImagesPath() string     { return filepath.Join(c.MediaStoragePath, DefaultImagesSubDir) }
func (c Config) ThumbnailsPath() string { return filepath.Join(c.MediaStoragePath, DefaultThumbnailsSubDir) }
func (c Config) CVPath() string         { return filepath.Join(c.MediaStoragePath, DefaultCVSubDir) }
