package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST"             envDefault:"0.0.0.0"`
	Port            int           `env:"HTTP_PORT"             envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (c *HTTPConfig) Sanitize() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 8080
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// DispatchConfig contains dispatch runner configuration.
type DispatchConfig struct {
	// Concurrency is the number of worker goroutines executing jobs.
	Concurrency int `env:"DISPATCH_CONCURRENCY" envDefault:"4"`
	// PollInterval bounds how long a worker waits before re-checking for
	// scheduled jobs when no notification arrives.
	PollInterval time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"15s"`
}

// Sanitize applies guardrails to dispatch runner configuration values.
func (c *DispatchConfig) Sanitize() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Concurrency > 64 {
		c.Concurrency = 64
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
}

// ReaperConfig contains stuck-job reaper configuration. A dispatcher
// crash can strand a job in processing forever; the reaper fails such
// jobs after a generous deadline so their outcome becomes visible.
type ReaperConfig struct {
	Interval   time.Duration `env:"REAPER_INTERVAL"    envDefault:"1m"`
	StuckAfter time.Duration `env:"REAPER_STUCK_AFTER" envDefault:"15m"`
	BatchSize  int           `env:"REAPER_BATCH_SIZE"  envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (c *ReaperConfig) Sanitize() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = 15 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}
