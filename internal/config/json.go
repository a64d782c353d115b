package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration wraps time.Duration so JSON configs can carry human-readable
// values like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("error parsing duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

type jsonConfig struct {
	Engine struct {
		Zone            string `json:"zone"`
		RecordType      string `json:"record_type"`
		MaxPushRetries  int    `json:"max_push_retries"`
		MaxPullRestarts int    `json:"max_pull_restarts"`
	} `json:"engine,omitempty"`

	Storage struct {
		DSN string `json:"dsn"`
	} `json:"storage,omitempty"`

	Remote struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"remote,omitempty"`

	Workers struct {
		SyncInterval Duration `json:"sync_interval"`
	} `json:"workers,omitempty"`

	Logging struct {
		File string `json:"file"`
	} `json:"logging,omitempty"`
}

func parseJSON(jsonFilePath string) (*Config, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg jsonConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &Config{
		Engine: Engine{
			Zone:            jsonCfg.Engine.Zone,
			RecordType:      jsonCfg.Engine.RecordType,
			MaxPushRetries:  jsonCfg.Engine.MaxPushRetries,
			MaxPullRestarts: jsonCfg.Engine.MaxPullRestarts,
		},
		Storage: Storage{
			DSN: jsonCfg.Storage.DSN,
		},
		Remote: Remote{
			BaseURL:        jsonCfg.Remote.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.Remote.RequestTimeout),
		},
		Workers: Workers{
			SyncInterval: time.Duration(jsonCfg.Workers.SyncInterval),
		},
		Logging: Logging{
			File: jsonCfg.Logging.File,
		},
	}

	return cfg, nil
}
