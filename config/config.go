package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds gallery crawler and viewer configuration.
type Config struct {
	OriginURL      string        `yaml:"origin_url"`
	Fetcher        string        `yaml:"fetcher"` // http or chrome
	Parallelism    int           `yaml:"parallelism"`
	Timeout        time.Duration `yaml:"timeout"` // zero waits indefinitely
	UserAgent      string        `yaml:"user_agent"`
	CacheSize      int           `yaml:"cache_size"`
	AllowedDomains []string      `yaml:"allowed_domains"`
	SidebarWidth   int           `yaml:"sidebar_width"`
	OutputFile     string        `yaml:"output_file"`
	OutputFormat   string        `yaml:"output_format"` // csv, json, dual or parquet
	MetricsAddr    string        `yaml:"metrics_addr"`
	Verbose        bool          `yaml:"verbose"`
}

// DefaultConfig returns defaults suited to the genmetrika gallery pages.
func DefaultConfig() *Config {
	return &Config{
		Fetcher:      "http",
		Parallelism:  8,
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		CacheSize:    1024,
		SidebarWidth: 16,
		OutputFile:   "output/gallery.csv",
		OutputFormat: "csv",
	}
}

// Validate ensures all configuration values are coherent.
// OriginURL may be empty here; commands that crawl check it through ValidateOrigin.
func (c *Config) Validate() error {
	if c.OriginURL != "" {
		if err := c.ValidateOrigin(); err != nil {
			return err
		}
	}
	if c.Fetcher != "http" && c.Fetcher != "chrome" {
		return fmt.Errorf("fetcher must be http or chrome")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.SidebarWidth < 0 {
		return fmt.Errorf("sidebar width cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "parquet":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or parquet")
	}

	return nil
}

// ValidateOrigin checks that OriginURL is an absolute http(s) URL.
func (c *Config) ValidateOrigin() error {
	if c.OriginURL == "" {
		return fmt.Errorf("origin URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.OriginURL)
	if err != nil {
		return fmt.Errorf("invalid origin URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("origin URL must include a host")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("origin URL must use http or https")
	}
	return nil
}
