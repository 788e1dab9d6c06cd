// Package config provides configuration loading for lexd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables with the LEXD_ prefix
//  2. YAML config file, when a path is given and the file exists
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix marks environment variables that override file values.
const envPrefix = "LEXD_"

// Load builds the configuration from defaults, an optional YAML file and
// LEXD_-prefixed environment variables.
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing and turning the first underscore into a section separator:
//
//	LEXD_SERVER_PORT          -> server.port
//	LEXD_STORE_NATS_URL       -> store.nats_url
//	LEXD_PROVIDER_API_KEY     -> provider.api_key
//	LEXD_JOBS_MAX_CONCURRENT  -> jobs.max_concurrent
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file %s: %w", configPath, err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// envTransform maps LEXD_SECTION_FIELD_NAME to section.field_name. Only
// the first underscore becomes a separator since field names themselves
// contain underscores.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}
