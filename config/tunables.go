package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/sirupsen/logrus"
	"github.com/titanous/json5"
)

// Duration is a time.Duration read from "10s" style strings or from a
// plain number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// Tunables are the timing and behavior knobs of a run
type Tunables struct {
	MaxAttempts       int      `json:"maxAttempts"`
	RetryDelay        Duration `json:"retryDelay"`
	ListingTimeout    Duration `json:"listingTimeout"`
	NavigationTimeout Duration `json:"navigationTimeout"`
	PopupTimeout      Duration `json:"popupTimeout"`
	LoginTimeout      Duration `json:"loginTimeout"`
	SettleDelay       Duration `json:"settleDelay"`
	AccountPause      Duration `json:"accountPause"`
	PhasePause        Duration `json:"phasePause"`

	MinDocumentSize int      `json:"minDocumentSize"`
	FetchRate       float64  `json:"fetchRate"`
	DownloadTimeout Duration `json:"downloadTimeout"`

	// service mode
	ScheduleInterval Duration `json:"scheduleInterval"`
	GRPCPort         string   `json:"grpcPort"`
	AutoUpdate       bool     `json:"autoUpdate"`
	UpdateInterval   Duration `json:"updateInterval"`
	UpdateRepo       string   `json:"updateRepo"`
}

// DefaultTunables returns the values used when no tunables file overrides them
func DefaultTunables() Tunables {
	return Tunables{
		MaxAttempts:       3,
		RetryDelay:        Duration{10 * time.Second},
		ListingTimeout:    Duration{30 * time.Second},
		NavigationTimeout: Duration{30 * time.Second},
		PopupTimeout:      Duration{15 * time.Second},
		LoginTimeout:      Duration{30 * time.Second},
		SettleDelay:       Duration{2 * time.Second},
		AccountPause:      Duration{2 * time.Second},
		PhasePause:        Duration{30 * time.Second},
		MinDocumentSize:   1000,
		FetchRate:         1,
		DownloadTimeout:   Duration{60 * time.Second},
		ScheduleInterval:  Duration{6 * time.Hour},
		GRPCPort:          "50051",
		UpdateInterval:    Duration{time.Hour},
		UpdateRepo:        "sameep-scrape/sameep-scrape",
	}
}

// Validate rejects values no run can work with
func (t Tunables) Validate() error {
	if t.MaxAttempts < 1 {
		return errors.New("maxAttempts must be at least 1")
	}
	if t.MinDocumentSize < 0 {
		return errors.New("minDocumentSize must not be negative")
	}
	if t.FetchRate < 0 {
		return errors.New("fetchRate must not be negative")
	}
	if t.ScheduleInterval.Duration < time.Minute {
		return errors.New("scheduleInterval must be at least one minute")
	}
	if !strings.Contains(t.UpdateRepo, "/") {
		return fmt.Errorf("updateRepo %q must be owner/name", t.UpdateRepo)
	}
	return nil
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

// ReadTunables merges, over the defaults, the file name and then
// <name>.local.<ext> next to it. Missing files are skipped.
func ReadTunables(name string) (Tunables, error) {
	out := DefaultTunables()

	base, ext := splitExt(name)
	for _, path := range []string{name, fmt.Sprintf("%s.local.%s", base, ext)} {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return out, err
		}
		if len(data) == 0 {
			continue
		}

		var override Tunables
		if err := json5.Unmarshal(data, &override); err != nil {
			return out, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", path, err)
		}
		logrus.WithField("file", path).Debug("Merged tunables")
	}
	return out, nil
}
