package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1 << 20 // 1MB

// envPrefix is the prefix every environment override must carry, e.g.
// RAGCRAWLD_VECTOR_DB__DSN maps to vector_db.dsn.
const envPrefix = "RAGCRAWLD_"

// Load builds a Config from defaults, an optional YAML file at path (or
// $RAGCRAWLD_CONFIG, or ~/.config/ragcrawld/config.yaml if path is
// empty), then environment variable overrides, in that precedence order.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, err := readConfigFile(resolved)
		if err != nil {
			return nil, err
		}
		if data != nil {
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", resolved, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	out := Default()
	if err := k.Unmarshal("", out); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return out, nil
}

// envTransform converts RAGCRAWLD_VECTOR_DB__DSN -> vector_db.dsn. A
// double underscore marks nesting; a single underscore stays part of the
// field name (so RAGCRAWLD_SIZE_LIMITS__MAX_RESPONSE_TOKENS ->
// size_limits.max_response_tokens).
func envTransform(s string) string {
	trimmed := strings.TrimPrefix(s, envPrefix)
	lower := strings.ToLower(trimmed)
	return strings.ReplaceAll(lower, "__", ".")
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv("RAGCRAWLD_CONFIG"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil // no home dir, no default file: not an error
	}
	return filepath.Join(home, ".config", "ragcrawld", "config.yaml"), nil
}

// readConfigFile validates and reads the config file, returning nil data
// (not an error) if the file simply does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds max size of %d bytes", path, maxConfigFileSize)
	}
	if info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("config file %s must not be group/world readable (mode %o)", path, info.Mode().Perm())
	}

	buf := make([]byte, info.Size())
	if _, err := f.Read(buf); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return buf, nil
}

