package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML config-file shape for the CLI's
// persistent flags — a plain flat settings file rather than a typed
// resource manifest, since this module has no resource kinds to apply,
// only connection/logging defaults to seed. Values present in the file
// seed a flag's default; an explicit command-line flag always wins.
type FileConfig struct {
	EnvPrefix        string `yaml:"env_prefix"`
	ArchivalEndpoint string `yaml:"archival_endpoint"`
	RPCEndpoint      string `yaml:"rpc_endpoint"`
	GraphQLEndpoint  string `yaml:"graphql_endpoint"`
	MetricsAddr      string `yaml:"metrics_addr"`
	LogLevel         string `yaml:"log_level"`
	LogJSON          bool   `yaml:"log_json"`
}

// LoadFile reads and parses a FileConfig from path.
func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fc, nil
}
