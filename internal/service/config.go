package service

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loadable from a YAML file.
// All top-level sections must be listed to satisfy KnownFields(true)
// strict parsing.
type Config struct {
	Addr              string  `yaml:"addr"`
	NumStreams        int     `yaml:"num_streams"`
	MemoryCapacityMB  int64   `yaml:"memory_capacity_mb"`
	CleanupIntervalS  int     `yaml:"cleanup_interval_s"`
	PreferGPU         bool    `yaml:"prefer_gpu"`
	AllowCPUFallback  bool    `yaml:"allow_cpu_fallback"`
	LogLevel          string  `yaml:"log_level"`
}

// DefaultConfig returns the built-in defaults used when no config file
// is supplied.
func DefaultConfig() Config {
	return Config{
		Addr:             "127.0.0.1:5555",
		NumStreams:       4,
		MemoryCapacityMB: 2048,
		CleanupIntervalS: 300,
		PreferGPU:        true,
		AllowCPUFallback: true,
		LogLevel:         "info",
	}
}

// LoadConfig parses a YAML config file with strict field checking: any
// key not present in Config is a load error, not a silent no-op.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
