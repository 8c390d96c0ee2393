package backend

import (
	"context"
	"time"

	"bankfees/internal/cache"
	"bankfees/internal/source"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the bank source and optional cleanup function.
type BackendResult struct {
	Source source.Source
	// Cache is the read-through decorator around the raw backend, nil when
	// caching is disabled. The API hands it to the catalog service so a
	// refresh can invalidate it.
	Cache *cache.CachedSource
	// Manager sweeps expired cache entries; nil without Cache.
	Manager *cache.Manager
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a bank source based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Memory backend specific
	DataDirectory string

	// SQLite mirror
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string

	// Remote API specific
	RemoteURL     string
	RemoteTimeout time.Duration

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Cache; DisableCache is set by the sync worker, which must see the
	// upstream as it is.
	DisableCache bool
	CacheTTL     time.Duration
	CacheSize    int
	RedisAddr    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	RemoteBackend   BackendType = "remote"
	SheetsBackend   BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, RemoteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
