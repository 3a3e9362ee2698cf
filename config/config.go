// Package config loads runtime configuration from the environment and the
// optional tunables file.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sameep-scrape/docstore"
	"github.com/sameep-scrape/retry"
	"github.com/sameep-scrape/scrapers"
)

// Config holds runtime configuration
type Config struct {
	User     string
	Password string
	BaseURL  string
	Headless bool

	DataDir          string
	ArtifactDir      string
	CheckpointPrefix string

	DocstoreDriver       string
	DocstoreURL          string
	DocstoreDatabase     string
	DocstoreCredsFile    string
	DocstoreCredsBase64  string
	DocstoreAccounts     string
	DocstoreSupplyPoints string
	DocstoreStatements   string
	DocstoreStoreContent bool

	ArtifactBucket       string
	ArtifactBucketPrefix string

	LogLevel string
	LogFile  string
	LogJSON  bool

	Tunables Tunables
}

// LoadDotEnv loads .env.local then .env into the environment. Missing files
// are ignored and variables already set are kept.
func LoadDotEnv() {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}
}

// Load reads environment variables into a Config with defaults, then the
// tunables file named by SAMEEP_CONFIG (default sameep.json5).
func Load() (Config, error) {
	dataDir := getEnv("DATA_DIR", "datos")
	cfg := Config{
		User:                 strings.TrimSpace(os.Getenv("SAMEEP_USER")),
		Password:             os.Getenv("SAMEEP_PASS"),
		BaseURL:              getEnv("SAMEEP_BASE_URL", scrapers.DefaultBaseURL),
		DataDir:              dataDir,
		ArtifactDir:          getEnv("ARTIFACT_DIR", filepath.Join(dataDir, "pdfs")),
		CheckpointPrefix:     getEnv("CHECKPOINT_PREFIX", "sameep-datos"),
		DocstoreDriver:       getEnv("DOCSTORE_DRIVER", docstore.DriverNone),
		DocstoreURL:          strings.TrimSpace(os.Getenv("DOCSTORE_URL")),
		DocstoreDatabase:     getEnv("DOCSTORE_DATABASE", "(default)"),
		DocstoreCredsFile:    strings.TrimSpace(os.Getenv("DOCSTORE_CREDS_FILE")),
		DocstoreCredsBase64:  strings.TrimSpace(os.Getenv("DOCSTORE_CREDS_BASE64")),
		DocstoreAccounts:     getEnv("DOCSTORE_ACCOUNTS", "clientes"),
		DocstoreSupplyPoints: getEnv("DOCSTORE_SUPPLY_POINTS", "suministros"),
		DocstoreStatements:   getEnv("DOCSTORE_STATEMENTS", "comprobantes"),
		ArtifactBucket:       strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET")),
		ArtifactBucketPrefix: strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET_PREFIX")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFile:              strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	var err error
	if cfg.Headless, err = parseBoolEnv("SAMEEP_HEADLESS", true); err != nil {
		return Config{}, fmt.Errorf("parse SAMEEP_HEADLESS: %w", err)
	}
	if cfg.DocstoreStoreContent, err = parseBoolEnv("DOCSTORE_STORE_CONTENT", false); err != nil {
		return Config{}, fmt.Errorf("parse DOCSTORE_STORE_CONTENT: %w", err)
	}
	if cfg.LogJSON, err = parseBoolEnv("LOG_JSON", false); err != nil {
		return Config{}, fmt.Errorf("parse LOG_JSON: %w", err)
	}

	cfg.Tunables, err = ReadTunables(getEnv("SAMEEP_CONFIG", "sameep.json5"))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that are inconsistent regardless of the mode.
// Credentials are checked separately by RequireCredentials.
func (c Config) Validate() error {
	switch c.DocstoreDriver {
	case docstore.DriverNone, docstore.DriverMemory:
	case docstore.DriverSQLite:
		if c.DocstoreURL == "" {
			return errors.New("DOCSTORE_URL (sqlite file) is required for the sqlite driver")
		}
	case docstore.DriverFirestore:
		if c.DocstoreURL == "" {
			return errors.New("DOCSTORE_URL (project id) is required for the firestore driver")
		}
	default:
		return fmt.Errorf("DOCSTORE_DRIVER %q is not one of none, sqlite, firestore", c.DocstoreDriver)
	}
	if c.DocstoreCredsBase64 != "" && c.DocstoreCredsFile != "" {
		return errors.New("set only one of DOCSTORE_CREDS_BASE64 and DOCSTORE_CREDS_FILE")
	}
	if c.ArtifactBucketPrefix != "" && c.ArtifactBucket == "" {
		return errors.New("ARTIFACT_BUCKET_PREFIX requires ARTIFACT_BUCKET")
	}
	return c.Tunables.Validate()
}

// ErrCredentialsMissing is returned by RequireCredentials
var ErrCredentialsMissing = errors.New("SAMEEP_USER and SAMEEP_PASS are required")

// RequireCredentials fails when the portal credentials are not set
func (c Config) RequireCredentials() error {
	if c.User == "" || c.Password == "" {
		return ErrCredentialsMissing
	}
	return nil
}

// CredentialsJSON returns the service account JSON used for Firestore and
// Cloud Storage, or nil to use application default credentials.
func (c Config) CredentialsJSON() ([]byte, error) {
	if c.DocstoreCredsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.DocstoreCredsBase64)
		if err != nil {
			return nil, fmt.Errorf("decode DOCSTORE_CREDS_BASE64: %w", err)
		}
		return decoded, nil
	}
	if c.DocstoreCredsFile != "" {
		data, err := os.ReadFile(c.DocstoreCredsFile)
		if err != nil {
			return nil, fmt.Errorf("read DOCSTORE_CREDS_FILE: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

// PortalConfig returns the session settings for the portal
func (c Config) PortalConfig() *scrapers.PortalConfig {
	pc := scrapers.DefaultPortalConfig()
	pc.UserID = c.User
	pc.Password = c.Password
	pc.BaseURL = c.BaseURL
	pc.Headless = c.Headless
	pc.ListingTimeout = c.Tunables.ListingTimeout.Duration
	pc.NavigationTimeout = c.Tunables.NavigationTimeout.Duration
	pc.PopupTimeout = c.Tunables.PopupTimeout.Duration
	pc.LoginTimeout = c.Tunables.LoginTimeout.Duration
	pc.SettleDelay = c.Tunables.SettleDelay.Duration
	return &pc
}

// RetryPolicy returns the bounded retry policy for entities
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Tunables.MaxAttempts,
		Delay:       c.Tunables.RetryDelay.Duration,
	}
}

// DocstoreConfig returns the document store settings
func (c Config) DocstoreConfig() (docstore.Config, error) {
	creds, err := c.CredentialsJSON()
	if err != nil {
		return docstore.Config{}, err
	}
	return docstore.Config{
		Driver:          c.DocstoreDriver,
		URL:             c.DocstoreURL,
		Database:        c.DocstoreDatabase,
		CredentialsJSON: creds,
		Accounts:        c.DocstoreAccounts,
		SupplyPoints:    c.DocstoreSupplyPoints,
		Statements:      c.DocstoreStatements,
		StoreContent:    c.DocstoreStoreContent,
	}, nil
}

// MirrorEnabled reports whether artifacts are copied to a bucket
func (c Config) MirrorEnabled() bool {
	return c.ArtifactBucket != ""
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func parseBoolEnv(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(val)
}
