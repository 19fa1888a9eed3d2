package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Reference policy
// --------------------------------------------------------------------------

const (
	// DefaultCollectionTTL is the time-to-live of every persisted collection cache
	DefaultCollectionTTL = 24 * time.Hour
	// DefaultPartitionTTL is the time-to-live of a cached partition list
	DefaultPartitionTTL = 15 * time.Minute
	// DefaultRecencyCapacity is the number of lookups the recency cache keeps
	DefaultRecencyCapacity = 24
	// DefaultFetchConcurrency is the number of partitions fetched at the same time
	DefaultFetchConcurrency = 8
)

// --------------------------------------------------------------------------
// Session configuration struct
// --------------------------------------------------------------------------

type StoreType string

const (
	StoreTypePebble StoreType = "pebble"
	StoreTypeMemory StoreType = "memory"
)

// Config holds all configuration parameters of a cache session.
type Config struct {
	// UID is the user the session belongs to
	UID string

	// durable store
	DataDir   string
	StoreType StoreType
	Codec     string

	// cache policy
	CollectionTTL    time.Duration
	PartitionTTL     time.Duration
	RecencyCapacity  int
	FetchConcurrency int

	// remote collaborators
	Endpoints     []string
	TimeoutSecond int
	Retries       int
	Token         string
	Accounts      []string

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns a configuration with the reference policy applied
func DefaultConfig() Config {
	return Config{
		DataDir:          "data",
		StoreType:        StoreTypePebble,
		Codec:            "json",
		CollectionTTL:    DefaultCollectionTTL,
		PartitionTTL:     DefaultPartitionTTL,
		RecencyCapacity:  DefaultRecencyCapacity,
		FetchConcurrency: DefaultFetchConcurrency,
		TimeoutSecond:    10,
		Retries:          3,
		LogLevel:         "warn",
	}
}

// Validate checks the configuration for values a session can not be opened with
func (c *Config) Validate() error {
	if c.UID == "" {
		return fmt.Errorf("uid is required")
	}
	switch c.StoreType {
	case StoreTypePebble, StoreTypeMemory:
	default:
		return fmt.Errorf("invalid store type: %s (expected one of: pebble, memory)", c.StoreType)
	}
	if c.CollectionTTL <= 0 || c.PartitionTTL <= 0 {
		return fmt.Errorf("ttl values must be positive")
	}
	if c.RecencyCapacity <= 0 {
		return fmt.Errorf("recency capacity must be positive, got %d", c.RecencyCapacity)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("fetch concurrency must be positive, got %d", c.FetchConcurrency)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// StorePath returns the location of the durable store inside the data directory
func (c *Config) StorePath() string {
	if c.StoreType == StoreTypeMemory {
		return filepath.Join(c.DataDir, "snapshot.bin")
	}
	return filepath.Join(c.DataDir, "pebble")
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Session")
	addField("UID", c.UID)
	addField("Log Level", c.LogLevel)

	addSection("Store")
	addField("Type", string(c.StoreType))
	addField("Path", c.StorePath())
	addField("Codec", c.Codec)

	addSection("Cache Policy")
	addField("Collection TTL", c.CollectionTTL.String())
	addField("Partition TTL", c.PartitionTTL.String())
	addField("Recency Capacity", fmt.Sprintf("%d", c.RecencyCapacity))
	addField("Fetch Concurrency", fmt.Sprintf("%d", c.FetchConcurrency))

	addSection("Remote")
	if len(c.Endpoints) == 0 {
		addField("Endpoints", "(none)")
	} else {
		addField("Endpoints", strings.Join(c.Endpoints, ", "))
	}
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retries", fmt.Sprintf("%d", c.Retries))
	token := "(none)"
	if c.Token != "" {
		token = "(set)"
	}
	addField("Token", token)
	addField("Accounts", strings.Join(c.Accounts, ", "))

	return sb.String()
}
