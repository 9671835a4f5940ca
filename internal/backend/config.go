package backend

import (
	"fmt"

	"treecensus/internal/census"
	"treecensus/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s (want one of %v)", appConfig.DataBackend, GetBackendTypeStrings())
	}

	return Config{
		Type:         backendType,
		Census:       CensusConfig(appConfig),
		SQLiteDBPath: appConfig.SQLiteDBPath,
	}, nil
}

// CensusConfig extracts the fetcher settings from the application config.
func CensusConfig(appConfig *config.Config) census.Config {
	cfg := census.DefaultConfig()
	cfg.BaseURL = appConfig.DatasetURL
	cfg.AppToken = appConfig.AppToken
	cfg.PageSize = appConfig.PageSize
	cfg.Timeout = appConfig.FetchTimeout
	cfg.Concurrency = appConfig.FetchConcurrency
	return cfg
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{RemoteBackend, SQLiteBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
