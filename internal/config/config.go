package config

import (
	"time"
)

// Config is the top-level configuration container for cloudsync. It
// aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, and an optional JSON
// file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type Config struct {
	// Engine holds reconciliation settings: the record zone, the
	// managed record type, and retry limits.
	Engine Engine `envPrefix:"ENGINE_"`

	// Storage holds the local persistence settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Remote holds the record-store endpoint settings.
	Remote Remote `envPrefix:"REMOTE_"`

	// Workers holds configuration for background worker processes.
	Workers Workers `envPrefix:"WORKERS_"`

	// Logging holds log output settings for the daemon.
	Logging Logging `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and fills whatever environment
	// variables and flags left unset.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Engine holds reconciliation settings.
type Engine struct {
	// Zone names the remote record zone all operations are scoped to.
	// Persistence keys for buffers, token, and setup flags derive from
	// it exactly once, via NewKeys.
	// Env: ENGINE_ZONE
	Zone string `env:"ZONE"`

	// RecordType names the record type this engine manages; deletions
	// of other types observed in the change feed are ignored.
	// Env: ENGINE_RECORD_TYPE
	RecordType string `env:"RECORD_TYPE"`

	// MaxPushRetries bounds resubmissions of one push batch.
	// Env: ENGINE_MAX_PUSH_RETRIES
	MaxPushRetries int `env:"MAX_PUSH_RETRIES"`

	// MaxPullRestarts bounds full fetch restarts within one pull.
	// Env: ENGINE_MAX_PULL_RESTARTS
	MaxPullRestarts int `env:"MAX_PULL_RESTARTS"`
}

// Storage holds local persistence settings.
type Storage struct {
	// DSN is the sqlite database path backing buffers, token, and
	// setup flags.
	// Env: STORAGE_DSN
	DSN string `env:"DSN"`
}

// Remote holds the record-store endpoint settings.
type Remote struct {
	// BaseURL is the record-store API base URL.
	// Env: REMOTE_ADDRESS
	BaseURL string `env:"ADDRESS"`

	// RequestTimeout bounds each remote request (e.g. "15s").
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Workers holds background worker settings.
type Workers struct {
	// SyncInterval is how often the background job force-syncs.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// Logging holds daemon log output settings.
type Logging struct {
	// File is the rolling log file path; empty logs to stdout.
	// Env: LOG_FILE
	File string `env:"FILE"`
}

// Keys are the persistence keys all durable engine state lives under.
// They are derived from the zone name exactly once here; no component
// recomputes them.
type Keys struct {
	UploadBuffer     string
	DeleteBuffer     string
	ChangeToken      string
	ZoneFlag         string
	SubscriptionFlag string
}

// NewKeys derives the persistence keys for a zone.
func NewKeys(zone string) Keys {
	return Keys{
		UploadBuffer:     zone + "/pending_upload",
		DeleteBuffer:     zone + "/pending_delete",
		ChangeToken:      zone + "/change_token",
		ZoneFlag:         zone + "/zone_provisioned",
		SubscriptionFlag: zone + "/subscription_active",
	}
}

func (cfg *Config) validate() error {
	if cfg.Engine.Zone == "" {
		return ErrInvalidEngineConfigs
	}
	if cfg.Engine.RecordType == "" {
		return ErrInvalidEngineConfigs
	}
	if cfg.Remote.BaseURL == "" {
		return ErrInvalidRemoteConfigs
	}
	return nil
}
