package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-zone record zone name
//	-record-type managed record type
//	-d local sqlite database path
//	-remote-address record-store API base URL
//	-request-timeout remote request timeout (e.g., "30s", "1m")
//	-sync-interval background sync interval (e.g., "5m")
//	-log-file rolling log file path
//	-c/-config json file path with configs
func ParseFlags() *Config {
	var zone string
	var recordType string
	var databaseDSN string
	var remoteAddress string
	var requestTimeout time.Duration
	var syncInterval time.Duration
	var logFile string
	var jsonConfigPath string

	flag.StringVar(&zone, "zone", "", "Record zone name")
	flag.StringVar(&recordType, "record-type", "", "Managed record type")
	flag.StringVar(&databaseDSN, "d", "", "Local sqlite database path")
	flag.StringVar(&remoteAddress, "remote-address", "", "Record-store API base URL")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 30s, 1m)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 5m)")
	flag.StringVar(&logFile, "log-file", "", "Rolling log file path")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	return &Config{
		Engine: Engine{
			Zone:       zone,
			RecordType: recordType,
		},
		Storage: Storage{
			DSN: databaseDSN,
		},
		Remote: Remote{
			BaseURL:        remoteAddress,
			RequestTimeout: requestTimeout,
		},
		Workers: Workers{
			SyncInterval: syncInterval,
		},
		Logging: Logging{
			File: logFile,
		},
		JSONFilePath: jsonConfigPath,
	}
}
