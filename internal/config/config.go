package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/terminal-bench/gridpulse/internal/risk"
)

// GridConfig holds all process configuration.
type GridConfig struct {
	Port         string
	TickInterval time.Duration
	AnomalyRate  float64
	PeakHours    []int
	TopologyPath string
	NATSUrl      string
	RedisAddr    string
	EntropySeed  int64
	LogLevel     string
	EvalWorkers  int
	Simulate     bool
	mu           sync.Mutex
	overrides    map[string]string
}

// DefaultConfig returns production defaults.
func DefaultConfig() *GridConfig {
	rc := risk.DefaultConfig()
	return &GridConfig{
		Port:         "8080",
		TickInterval: 5 * time.Second,
		AnomalyRate:  rc.AnomalyRate,
		PeakHours:    rc.PeakHours,
		LogLevel:     "info",
		EvalWorkers:  4,
		Simulate:     true,
		overrides:    map[string]string{},
	}
}

// ValidateConfig checks ranges of every tunable.
func ValidateConfig(c *GridConfig) error {
	if c.Port == "" {
		return fmt.Errorf("port must be set")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.EvalWorkers < 1 {
		return fmt.Errorf("eval workers must be at least 1, got %d", c.EvalWorkers)
	}
	if err := c.RiskConfig().Validate(); err != nil {
		return err
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// RiskConfig returns the classifier parameters.
func (c *GridConfig) RiskConfig() risk.Config {
	return risk.Config{AnomalyRate: c.AnomalyRate, PeakHours: append([]int(nil), c.PeakHours...)}
}

// Load builds a config from DefaultConfig overlaid with the environment.
func Load() (*GridConfig, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a config using lookup in place of the process environment.
func FromLookup(lookup func(string) (string, bool)) (*GridConfig, error) {
	c := DefaultConfig()
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	if v, ok := lookup("TICK_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}
	if v, ok := lookup("ANOMALY_RATE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("ANOMALY_RATE: %w", err)
		}
		c.AnomalyRate = f
	}
	if v, ok := lookup("PEAK_HOURS"); ok && v != "" {
		hours, err := ParsePeakHours(v)
		if err != nil {
			return nil, fmt.Errorf("PEAK_HOURS: %w", err)
		}
		c.PeakHours = hours
	}
	if v, ok := lookup("ENTROPY_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ENTROPY_SEED: %w", err)
		}
		c.EntropySeed = n
	}
	if v, ok := lookup("EVAL_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("EVAL_WORKERS: %w", err)
		}
		c.EvalWorkers = n
	}
	if v, ok := lookup("SIMULATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("SIMULATE: %w", err)
		}
		c.Simulate = b
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	c.TopologyPath, _ = lookup("TOPOLOGY_PATH")
	c.NATSUrl, _ = lookup("NATS_URL")
	c.RedisAddr, _ = lookup("REDIS_ADDR")

	if err := ValidateConfig(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParsePeakHours parses a comma separated list of hours and "a-b" ranges,
// e.g. "17-21" or "7,8,18-20".
func ParsePeakHours(raw string) ([]int, error) {
	var hours []int
	seen := map[int]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i > 0 {
			lo, hi = part[:i], part[i+1:]
		}
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad hour %q", part)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("bad hour %q", part)
		}
		if from < 0 || to > 23 || from > to {
			return nil, fmt.Errorf("hour range %q out of 0..23", part)
		}
		for h := from; h <= to; h++ {
			if !seen[h] {
				seen[h] = true
				hours = append(hours, h)
			}
		}
	}
	if len(hours) == 0 {
		return nil, fmt.Errorf("no peak hours in %q", raw)
	}
	return hours, nil
}

// SetOverride stores a runtime config override.
func (c *GridConfig) SetOverride(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overrides == nil {
		c.overrides = map[string]string{}
	}
	c.overrides[key] = value
}

// GetOverride reads a runtime config override.
func (c *GridConfig) GetOverride(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.overrides[key]
	return v, ok
}

// Overrides returns a copy of all runtime overrides.
func (c *GridConfig) Overrides() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.overrides))
	for k, v := range c.overrides {
		out[k] = v
	}
	return out
}
