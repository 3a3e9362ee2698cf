package updater

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Update check interval (default: 1 hour)
	DefaultCheckInterval = 1 * time.Hour

	// Startup delay before first check (allow service to stabilize)
	StartupDelay = 30 * time.Second
)

// Config holds the updater configuration
type Config struct {
	Owner          string
	Repo           string
	CheckInterval  time.Duration
	CurrentVersion string
}

// NewConfig builds a configuration for the GitHub repository slug
// ("owner/name"). A zero interval means DefaultCheckInterval.
func NewConfig(slug, version string, interval time.Duration) (*Config, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(slug), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("invalid repository %q, want owner/name", slug)
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Config{
		Owner:          owner,
		Repo:           repo,
		CheckInterval:  interval,
		CurrentVersion: version,
	}, nil
}

// Slug returns owner/name
func (c *Config) Slug() string {
	return c.Owner + "/" + c.Repo
}

// normalizeVersion makes sure the version starts with 'v' for comparison
func normalizeVersion(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		return "v" + v
	}
	return v
}
