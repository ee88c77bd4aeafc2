package storage

import "time"

// Config holds the settings a driver needs to connect and pool.
type Config struct {
	// DSN is the full data source name / connection string.
	DSN string

	// Pool tuning
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Timeouts
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// DefaultConfig returns production-ready pool settings for the given DSN.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    30 * time.Second,
	}
}
