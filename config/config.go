package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, read once at startup. Only the
// GhanaNLP key is mandatory; everything else has a deployment default or
// degrades a feature when absent.
type Config struct {
	GhanaNLPAPIKey string
	STTProvider    string // "ghananlp" (default) or "google"

	// SpokenLanguage is what the caller speaks; LookupLanguages is the
	// ordered list of Q&A store language tags tried per lookup.
	SpokenLanguage  string
	LookupLanguages []string

	// OrgToken gates the keyword matching tier.
	OrgToken string

	DefaultAnswer string
	ApologyText   string

	SQLitePath       string
	FallbackClipPath string
	RecordingsDir    string
	OutputPath       string

	GCSBucket string // optional audio archive

	Workers int
	Port    string
}

// Load reads .env (best-effort) and the environment. It fails only on the
// one fatal misconfiguration: a missing GhanaNLP API key.
func Load() (*Config, error) {
	cfg := LoadLoose()
	if cfg.GhanaNLPAPIKey == "" {
		return nil, errors.New("GHANANLP_API_KEY environment variable is not set")
	}
	return cfg, nil
}

// LoadLoose is Load without the key requirement, for operator tooling where
// most commands never talk to the speech APIs.
func LoadLoose() *Config {
	_ = godotenv.Load()

	apiKey := os.Getenv("GHANANLP_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GHANA_NLP_API_KEY")
	}

	cfg := &Config{
		GhanaNLPAPIKey:   apiKey,
		STTProvider:      getenv("STT_PROVIDER", "ghananlp"),
		SpokenLanguage:   getenv("SPOKEN_LANGUAGE", "tw"),
		LookupLanguages:  []string{getenv("LOOKUP_LANGUAGE", "en"), getenv("LOOKUP_LANGUAGE_FALLBACK", "tw")},
		OrgToken:         getenv("ORG_TOKEN", "cultiflow"),
		DefaultAnswer:    getenv("DEFAULT_ANSWER", "Thank you for calling. I did not understand that clearly. Please say again, or tell me what you need."),
		ApologyText:      getenv("APOLOGY_TEXT", "Mepa wo kyɛw, me nte asɛm no yi yiye. San ka bio."),
		SQLitePath:       getenv("SQLITE_PATH", "voicedesk.db"),
		FallbackClipPath: os.Getenv("FALLBACK_CLIP_PATH"),
		RecordingsDir:    getenv("RECORDINGS_DIR", "recordings"),
		OutputPath:       os.Getenv("OUTPUT_PATH"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		Workers:          getenvInt("WORKERS", 5),
		Port:             getenv("PORT", "8080"),
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(cfg.RecordingsDir, "response.wav")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
