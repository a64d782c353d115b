package config

import "errors"

// Validation errors returned by [Config.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidEngineConfigs indicates invalid engine settings
	// (for example, missing zone or record type).
	ErrInvalidEngineConfigs = errors.New("invalid engine configuration")
	// ErrInvalidRemoteConfigs indicates invalid remote endpoint settings
	// (for example, missing base URL).
	ErrInvalidRemoteConfigs = errors.New("invalid remote configuration")
)
