package backend

import (
	"fmt"

	"bankfees/internal/config"
)

// FromAppConfig converts the application config to the config of the
// backend the API reads from.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	return fromAppConfig(appConfig, appConfig.DataBackend)
}

// SyncSourceConfig converts the application config to the config of the
// upstream the sync worker mirrors. The result is never cached.
func SyncSourceConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg, err := fromAppConfig(appConfig, appConfig.SyncSource)
	if err != nil {
		return Config{}, err
	}
	if cfg.Type == SQLiteBackend || cfg.Type == MemoryBackend {
		return Config{}, fmt.Errorf("backend %s cannot be a sync source", cfg.Type)
	}
	cfg.DisableCache = true
	return cfg, nil
}

func fromAppConfig(appConfig *config.Config, backend string) (Config, error) {
	backendType := BackendType(backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", backend)
	}

	return Config{
		Type: backendType,

		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PostgresURL:   appConfig.PostgresURL,
		RemoteURL:     appConfig.RemoteAPIURL,
		RemoteTimeout: appConfig.RemoteTimeout,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		DisableCache: appConfig.CacheSize == 0,
		CacheTTL:     appConfig.CacheTTL,
		CacheSize:    appConfig.CacheSize,
		RedisAddr:    appConfig.RedisAddr,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("Postgres URL is required for postgres backend")
		}

	case RemoteBackend:
		if c.RemoteURL == "" {
			return fmt.Errorf("remote API URL is required for remote backend")
		}

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}

	case MemoryBackend:
		// DataDirectory defaults to "data"; a missing seed falls back to the
		// built-in catalog.
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend, RemoteBackend, SheetsBackend}
}
