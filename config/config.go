package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk prover configuration. Circuit key files listed in
// Keys are loaded at startup; the server refuses to start without at least
// one of them.
type Config struct {
	ProverAddress  string   `toml:"prover-address"`
	MetricsAddress string   `toml:"metrics-address"`
	JSONLogging    bool     `toml:"json-logging"`
	CircuitDir     string   `toml:"circuit-dir"`
	Keys           []string `toml:"keys"`
}

func (cfg *Config) HasKey(key string) bool {
	for _, k := range cfg.Keys {
		if k == key {
			return true
		}
	}
	return false
}

func (cfg *Config) Validate() error {
	if len(cfg.Keys) == 0 {
		return fmt.Errorf("config: no circuit keys configured")
	}
	return nil
}

func ReadConfig(file string) (Config, error) {
	cfg := Config{
		ProverAddress:  "localhost:3001",
		MetricsAddress: "localhost:9998",
	}
	configFileData, err := os.ReadFile(file)
	if err != nil {
		return cfg, err
	}
	err = toml.Unmarshal(configFileData, &cfg)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}
