package config

import (
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/auth"
	"github.com/WubeDegife/Microgrid-Optimization/core/ingest"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// SourceConfig locates one series: a local CSV file or an HTTP URL.
type SourceConfig struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	// Column is the zero-based CSV column holding the values.
	Column int `json:"column"`
}

// Set reports whether a location is configured.
func (s SourceConfig) Set() bool { return s.Path != "" || s.URL != "" }

// DataConfig describes where the yearly series come from.
type DataConfig struct {
	Load  SourceConfig `json:"load"`
	Solar SourceConfig `json:"solar"`
	Wind  SourceConfig `json:"wind"`
	// SolarProfile and WindProfile are "output_kw" (default) or "fraction".
	SolarProfile    ingest.Profile `json:"solar_profile"`
	WindProfile     ingest.Profile `json:"wind_profile"`
	ExpectedSamples int            `json:"expected_samples"`
	// YearStart is the timestamp of the first sample, RFC 3339 or YYYY-MM-DD.
	YearStart string `json:"year_start"`
	// OAuth protects URL sources when set.
	OAuth          auth.Conf `json:"oauth"`
	TimeoutSeconds int       `json:"timeout_seconds"`
}

func (c *DataConfig) SetDefaults() {
	if c.SolarProfile == "" {
		c.SolarProfile = ingest.ProfileOutputKW
	}
	if c.WindProfile == "" {
		c.WindProfile = ingest.ProfileOutputKW
	}
	if c.ExpectedSamples <= 0 {
		c.ExpectedSamples = ingest.DefaultExpectedSamples
	}
	if c.YearStart == "" {
		c.YearStart = ingest.DefaultYearStart.Format(time.DateOnly)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

func (c DataConfig) Validate() error {
	for _, s := range []struct {
		key string
		src SourceConfig
	}{{"data.load", c.Load}, {"data.solar", c.Solar}, {"data.wind", c.Wind}} {
		if s.src.Path != "" && s.src.URL != "" {
			return model.NewConfigurationError(s.key, "set either path or url, not both")
		}
		if s.src.Column < 0 {
			return model.NewConfigurationError(s.key+".column", "must be >= 0")
		}
	}
	if !c.SolarProfile.Valid() {
		return model.NewConfigurationError("data.solar_profile", "unknown profile %q", c.SolarProfile)
	}
	if !c.WindProfile.Valid() {
		return model.NewConfigurationError("data.wind_profile", "unknown profile %q", c.WindProfile)
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	return nil
}

// Start parses YearStart.
func (c DataConfig) Start() (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, c.YearStart); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, model.NewConfigurationError("data.year_start", "cannot parse %q", c.YearStart)
}

// Complete reports whether all three series have a location.
func (c DataConfig) Complete() bool {
	return c.Load.Set() && c.Solar.Set() && c.Wind.Set()
}
