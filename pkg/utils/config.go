package utils

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config is a thread-safe key/value store for settings read from the environment.
// Typed getters never fail; they fall back to a zero value or the given default.
type Config struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewConfig creates a Config holding a copy of values
func NewConfig(values map[string]string) *Config {
	c := &Config{values: make(map[string]string, len(values))}
	maps.Copy(c.values, values)
	return c
}

// NewConfigFromEnv loads the given .env files into the process environment and
// snapshots the result. Later files do not override earlier ones.
func NewConfigFromEnv(files ...string) *Config {
	return NewConfig(LoadEnv(files...))
}

// Get returns the raw value for key, or "" if unset
func (c *Config) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// lookup returns the trimmed value and whether it is set and non-empty
func (c *Config) lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value := strings.TrimSpace(c.values[key])
	return value, value != ""
}

// GetWithDefault returns the value for key, or defaultValue if unset or empty
func (c *Config) GetWithDefault(key, defaultValue string) string {
	if value, ok := c.lookup(key); ok {
		return value
	}
	return defaultValue
}

// GetBool parses key as a boolean. Accepts strconv forms plus yes/no, on/off, enabled/disabled.
func (c *Config) GetBool(key string) bool {
	return c.GetBoolWithDefault(key, false)
}

// GetBoolWithDefault parses key as a boolean, returning defaultValue if unset or unparseable
func (c *Config) GetBoolWithDefault(key string, defaultValue bool) bool {
	value, ok := c.lookup(key)
	if !ok {
		return defaultValue
	}

	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed
	}

	switch strings.ToLower(value) {
	case "yes", "on", "enabled":
		return true
	case "no", "off", "disabled":
		return false
	}
	return defaultValue
}

// GetInt parses key as an integer, returning 0 if unset or unparseable
func (c *Config) GetInt(key string) int {
	return c.GetIntWithDefault(key, 0)
}

// GetIntWithDefault parses key as an integer, returning defaultValue if unset or unparseable
func (c *Config) GetIntWithDefault(key string, defaultValue int) int {
	value, ok := c.lookup(key)
	if !ok {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetFloat parses key as a float, returning 0 if unset or unparseable
func (c *Config) GetFloat(key string) float64 {
	return c.GetFloatWithDefault(key, 0)
}

// GetFloatWithDefault parses key as a float, returning defaultValue if unset or unparseable
func (c *Config) GetFloatWithDefault(key string, defaultValue float64) float64 {
	value, ok := c.lookup(key)
	if !ok {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetDurationWithDefault parses key with time.ParseDuration
func (c *Config) GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value, ok := c.lookup(key)
	if !ok {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Set stores value under key
func (c *Config) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// SetDefault stores value under key only if the key is unset or empty. It reports whether it wrote.
func (c *Config) SetDefault(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(c.values[key]) != "" {
		return false
	}
	c.values[key] = value
	return true
}

// SetInt stores an integer value under key
func (c *Config) SetInt(key string, value int) {
	c.Set(key, strconv.Itoa(value))
}

// SetFloat stores a float value under key
func (c *Config) SetFloat(key string, value float64) {
	c.Set(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// Has reports whether key is set, even to an empty value
func (c *Config) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.values[key]
	return exists
}

// Keys returns all keys in sorted order
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.values))
}

// Merge copies every value from other into c, overwriting existing keys
func (c *Config) Merge(other *Config) {
	if other == nil || other == c {
		return
	}

	snapshot := other.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Copy(c.values, snapshot.values)
}

// Clone returns an independent copy
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return NewConfig(c.values)
}
