package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations so operators can write "30s" in config files.
type StructuredJSONConfig struct {
	App struct {
		Role     string `json:"role"`
		Identity string `json:"identity"`
	} `json:"app,omitempty"`

	Transport struct {
		Address        string   `json:"address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"transport,omitempty"`

	Sync struct {
		PageSize         int      `json:"page_size"`
		UpdateDebounce   Duration `json:"update_debounce"`
		SettleTimeout    Duration `json:"settle_timeout"`
		MigrationRetries int      `json:"migration_retries"`
	} `json:"sync,omitempty"`

	Storage struct {
		KVPath string `json:"kv_path"`
	} `json:"storage,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			Role:     jsonCfg.App.Role,
			Identity: jsonCfg.App.Identity,
		},
		Transport: Transport{
			Address:        jsonCfg.Transport.Address,
			RequestTimeout: time.Duration(jsonCfg.Transport.RequestTimeout),
		},
		Sync: Sync{
			PageSize:         jsonCfg.Sync.PageSize,
			UpdateDebounce:   time.Duration(jsonCfg.Sync.UpdateDebounce),
			SettleTimeout:    time.Duration(jsonCfg.Sync.SettleTimeout),
			MigrationRetries: jsonCfg.Sync.MigrationRetries,
		},
		Storage: Storage{
			KVPath: jsonCfg.Storage.KVPath,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
