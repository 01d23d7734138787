package config

import (
	"fmt"
	"strconv"
)

// Environment variables that override tally.yaml.
const (
	EnvLogLevel        = "TALLY_LOG_LEVEL"
	EnvLogFormat       = "TALLY_LOG_FORMAT"
	EnvWorkers         = "TALLY_WORKERS"
	EnvMetricsTextfile = "TALLY_METRICS_TEXTFILE"
	EnvGitAutoCommit   = "TALLY_GIT_AUTO_COMMIT"
)

// ApplyEnv overrides config values from environment variables looked up with lookup
// (os.LookupEnv in production) and revalidates the result.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Classify.Workers = n
	}
	if v, ok := lookup(EnvMetricsTextfile); ok {
		c.Metrics.Textfile = v
	}
	if v, ok := lookup(EnvGitAutoCommit); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGitAutoCommit, err)
		}
		c.Git.AutoCommit = b
	}
	return c.Validate()
}
