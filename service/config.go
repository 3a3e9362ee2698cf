package service

import (
	"path/filepath"

	"github.com/kardianos/service"
)

const (
	ServiceName        = "sameep-scrape"
	ServiceDisplayName = "SAMEEP Scraper Service"
	ServiceDescription = "SAMEEP portal scraper - periodically downloads pending billing documents"
)

// NewServiceConfig creates a new service configuration. The service runs
// from the executable's directory so relative paths and .env files resolve
// there.
func NewServiceConfig(exePath string, args []string) *service.Config {
	cfg := &service.Config{
		Name:             ServiceName,
		DisplayName:      ServiceDisplayName,
		Description:      ServiceDescription,
		Arguments:        args,
		Executable:       exePath,
		WorkingDirectory: filepath.Dir(exePath),
	}

	// Windows-specific options
	cfg.Option = service.KeyValue{
		"StartType": "automatic",
	}

	return cfg
}
