package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBackendURL   = "http://localhost:3000"
	defaultAPIPrefix    = "/api"
	defaultAssetPath    = "/public"
	defaultGoogleIssuer = "https://accounts.google.com"
)

type Config struct {
	BackendURL   string
	APIBaseURL   string
	AssetBaseURL string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleIssuer       string
	GoogleCredential   string

	DataDir  string
	DBPath   string
	LogPath  string
	LogLevel string

	RequestTimeout time.Duration
	PostListTTL    time.Duration
	PostsPerPage   int
	MaxConcurrent  int
}

func Default() Config {
	return withDataDir(Config{
		BackendURL:     defaultBackendURL,
		APIBaseURL:     defaultBackendURL + defaultAPIPrefix,
		AssetBaseURL:   defaultBackendURL + defaultAssetPath,
		GoogleIssuer:   defaultGoogleIssuer,
		LogLevel:       "info",
		RequestTimeout: 10 * time.Second,
		PostListTTL:    60 * time.Second,
		PostsPerPage:   5,
		MaxConcurrent:  5,
	}, filepath.Join(userConfigDir(), "astroshare"))
}

// Load returns the defaults overlaid with .env files and the process
// environment. Variables already set in the environment win over .env values.
func Load() (Config, error) {
	cfg := Default()
	dataDir := getenv("ASTROSHARE_DATA_DIR", cfg.DataDir)

	for _, path := range []string{".env", filepath.Join(dataDir, ".env")} {
		if err := loadDotEnv(path); err != nil {
			return cfg, err
		}
	}
	return fromEnv(cfg)
}

func fromEnv(cfg Config) (Config, error) {
	cfg = withDataDir(cfg, getenv("ASTROSHARE_DATA_DIR", cfg.DataDir))

	backend := strings.TrimRight(getenv("ASTROSHARE_BACKEND_URL", cfg.BackendURL), "/")
	if backend == "" {
		return cfg, fmt.Errorf("ASTROSHARE_BACKEND_URL must not be empty")
	}
	cfg.BackendURL = backend
	cfg.APIBaseURL = backend + getenv("ASTROSHARE_API_PREFIX", defaultAPIPrefix)
	cfg.AssetBaseURL = strings.TrimRight(getenv("ASTROSHARE_ASSET_BASE_URL", backend+defaultAssetPath), "/")

	cfg.GoogleClientID = getenv("ASTROSHARE_GOOGLE_CLIENT_ID", cfg.GoogleClientID)
	cfg.GoogleClientSecret = getenv("ASTROSHARE_GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret)
	cfg.GoogleIssuer = getenv("ASTROSHARE_GOOGLE_ISSUER", cfg.GoogleIssuer)
	cfg.GoogleCredential = getenv("ASTROSHARE_GOOGLE_CREDENTIAL", cfg.GoogleCredential)
	cfg.LogLevel = getenv("ASTROSHARE_LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("ASTROSHARE_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid ASTROSHARE_REQUEST_TIMEOUT %q", v)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("ASTROSHARE_POSTS_PER_PAGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid ASTROSHARE_POSTS_PER_PAGE %q", v)
		}
		cfg.PostsPerPage = n
	}
	if v := os.Getenv("ASTROSHARE_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid ASTROSHARE_MAX_CONCURRENT %q", v)
		}
		cfg.MaxConcurrent = n
	}
	return cfg, nil
}

func withDataDir(cfg Config, dir string) Config {
	cfg.DataDir = dir
	cfg.DBPath = filepath.Join(dir, "astroshare.db")
	cfg.LogPath = filepath.Join(dir, "debug.log")
	return cfg
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}
