package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   string
	DBPath string

	MaxConcurrentJobs int
	MaxKeywords       int
	Retention         time.Duration
	SweepInterval     time.Duration

	EbayBaseURL string

	LLMAPIKey   string
	LLMModel    string
	LLMEndpoint string

	ProfilePath string
	Profile     Profile
}

// Profile is the search profile: what to scrape and what counts as
// relevant. Loaded from a YAML file when present, with built-in
// defaults otherwise.
type Profile struct {
	Keywords   []string `yaml:"keywords"`
	Indicators []string `yaml:"indicators"`
	MinPrice   float64  `yaml:"minPrice"`
}

func defaultProfile() Profile {
	return Profile{
		Keywords: []string{
			"vintage kimono",
			"antique obi",
			"haori jacket",
			"japanese silk fabric",
			"tansu chest",
		},
		Indicators: []string{
			"kimono", "obi", "haori", "yukata", "tansu",
			"japanese", "japan", "vintage", "antique", "silk",
		},
		MinPrice: 10,
	}
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using system environment")
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "scraping.db"),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 3),
		MaxKeywords:       getEnvInt("MAX_KEYWORDS", 10),
		Retention:         time.Duration(getEnvInt("RETENTION_MINUTES", 60)) * time.Minute,
		SweepInterval:     time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 10)) * time.Minute,
		EbayBaseURL:       getEnv("EBAY_BASE_URL", "https://www.ebay.com"),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMEndpoint:       getEnv("LLM_ENDPOINT", ""),
		ProfilePath:       getEnv("PROFILE_PATH", ""),
	}

	profile, err := loadProfile(cfg.ProfilePath)
	if err != nil {
		return Config{}, err
	}
	cfg.Profile = profile

	return cfg, nil
}

func loadProfile(path string) (Profile, error) {
	if path == "" {
		return defaultProfile(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	profile := defaultProfile()
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if len(profile.Keywords) == 0 {
		return Profile{}, fmt.Errorf("profile %s has no keywords", path)
	}
	return profile, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
