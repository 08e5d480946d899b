package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: EDS_DEGLONGITUDE overrides
// degLongitude.
const EnvPrefix = "EDS_"

// Load reads the YAML parameter file over the defaults, then applies
// environment overrides. A missing file is not an error. envFile, if
// non-empty, is loaded into the environment first (existing variables win).
func Load(filename, envFile string) (*Store, error) {
	values := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case os.IsNotExist(err):
			log.Printf("config: %s not found, using defaults", filename)
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			var file map[string]any
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			for k, v := range file {
				values[k] = v
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}
	if err := applyEnv(values); err != nil {
		return nil, err
	}

	return NewStore(values), nil
}

// applyEnv overrides known keys from EDS_<KEY> variables. Values are parsed as
// YAML so lists and numbers keep their kinds.
func applyEnv(values map[string]any) error {
	for key := range values {
		raw, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(key))
		if !ok {
			continue
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return fmt.Errorf("config: env %s%s: %w", EnvPrefix, strings.ToUpper(key), err)
		}
		values[key] = v
	}
	return nil
}

// Save writes the store's values as YAML.
func (s *Store) Save(filename string) error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
