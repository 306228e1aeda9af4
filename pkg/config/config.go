// Package config holds the settings for one blind-introspection run.
//
// A Config value is built once (defaults, then an optional YAML file, then
// command-line flags) and passed explicitly to every component constructor.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config is the run configuration. Field tags match the keys accepted in the
// YAML config file.
type Config struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`

	Concurrency   int           `yaml:"concurrent_requests"` // Maximum in-flight requests.
	MaxRetries    int           `yaml:"max_retries"`         // Retries after the first attempt.
	Backoff       time.Duration `yaml:"backoff"`             // Delay before the first retry.
	BackoffFactor float64       `yaml:"backoff_factor"`      // Growth of the delay per attempt.
	MaxBackoff    time.Duration `yaml:"max_backoff"`         // Upper bound for a single delay.
	Timeout       time.Duration `yaml:"timeout"`             // Per-attempt timeout.

	Proxy              string `yaml:"proxy"`
	InsecureSkipVerify bool   `yaml:"no_ssl"`
	UserAgent          string `yaml:"user_agent"`

	BucketSize      int  `yaml:"bucket_size"` // Candidate names per name-discovery request.
	ProbeEnumValues bool `yaml:"enum_values"`

	Verbosity int `yaml:"verbose"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Headers:       map[string]string{},
		Concurrency:   16,
		MaxRetries:    3,
		Backoff:       time.Second,
		BackoffFactor: 2,
		MaxBackoff:    30 * time.Second,
		Timeout:       30 * time.Second,
		UserAgent:     "gqlblind/1.0",
		BucketSize:    64,
	}
}

// Load reads a YAML config file on top of Default. An empty path returns the
// defaults; a path that names no file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.URL == "" {
		result = multierror.Append(result, errors.New("url is required"))
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("url %q is not an absolute URL", c.URL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		result = multierror.Append(result, fmt.Errorf("url scheme %q is not supported (use http or https)", u.Scheme))
	}

	if c.Concurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("concurrent_requests must be at least 1, got %d", c.Concurrency))
	}
	if c.MaxRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("max_retries cannot be negative, got %d", c.MaxRetries))
	}
	if c.Backoff < 0 {
		result = multierror.Append(result, fmt.Errorf("backoff cannot be negative, got %s", c.Backoff))
	}
	if c.BackoffFactor < 1 {
		result = multierror.Append(result, fmt.Errorf("backoff_factor must be at least 1, got %g", c.BackoffFactor))
	}
	if c.MaxBackoff > 0 && c.MaxBackoff < c.Backoff {
		result = multierror.Append(result, fmt.Errorf("max_backoff (%s) must not be below backoff (%s)", c.MaxBackoff, c.Backoff))
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.BucketSize < 1 {
		result = multierror.Append(result, fmt.Errorf("bucket_size must be at least 1, got %d", c.BucketSize))
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("proxy %q is not an absolute URL", c.Proxy))
		}
	}

	return result.ErrorOrNil()
}

// ParseHeaders reads "Key: Value" lines. Blank lines are skipped; a line
// without the ": " separator is an error naming its line number.
func ParseHeaders(r io.Reader) (map[string]string, error) {
	headers := map[string]string{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("line %d: expected \"Key: Value\", got %q", lineNum, line)
		}
		headers[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return headers, nil
}

// LoadHeaderFiles parses every file with ParseHeaders and merges the results
// into dst. Later files win on duplicate keys.
func LoadHeaderFiles(dst map[string]string, paths ...string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open header file: %w", err)
		}
		headers, err := ParseHeaders(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("header file %s: %w", path, err)
		}
		for k, v := range headers {
			dst[k] = v
		}
	}
	return nil
}
