package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// ApplyEnv overlays GALLERY_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("GALLERY_ORIGIN_URL"); ok {
		c.OriginURL = value
	}
	if value, ok := EnvString("GALLERY_FETCHER"); ok {
		c.Fetcher = strings.ToLower(value)
	}
	if value, ok, err := EnvInt("GALLERY_PARALLEL"); err != nil {
		return err
	} else if ok {
		c.Parallelism = value
	}
	if value, ok, err := EnvDuration("GALLERY_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = value
	}
	if value, ok := EnvString("GALLERY_USER_AGENT"); ok {
		c.UserAgent = value
	}
	if value, ok, err := EnvInt("GALLERY_CACHE_SIZE"); err != nil {
		return err
	} else if ok {
		c.CacheSize = value
	}
	if value, ok := EnvString("GALLERY_ALLOWED_DOMAINS"); ok {
		c.AllowedDomains = splitList(value)
	}
	if value, ok := EnvString("GALLERY_OUTPUT"); ok {
		c.OutputFile = value
	}
	if value, ok := EnvString("GALLERY_FORMAT"); ok {
		c.OutputFormat = strings.ToLower(value)
	}
	if value, ok := EnvString("GALLERY_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	if value, ok, err := EnvBool("GALLERY_VERBOSE"); err != nil {
		return err
	} else if ok {
		c.Verbose = value
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
