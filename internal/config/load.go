package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "DOCENGINE_"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration from path, applies environment overrides
// and validates the result. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (*Config, error) {
	var layers map[string]any
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		layers, err = parse(path, data)
		if err != nil {
			return nil, err
		}
	}
	layers = DeepMerge(layers, envOverrides(EnvPrefix, environ))

	cfg := Default()
	if len(layers) > 0 {
		// Round-trip through YAML so file and environment values decode
		// with the same rules onto the defaults.
		data, err := yaml.Marshal(layers)
		if err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ParseError{Path: sourceName(path), Err: err}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sourceName(path string) string {
	if path == "" {
		return "<environment>"
	}
	return path
}

// parse decodes a config file into a map by extension.
func parse(path string, data []byte) (map[string]any, error) {
	var m map[string]any
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return m, nil
}

// Validate checks every field of c.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return newValidationError(verrs)
	}
	return err
}

// DeepMerge recursively merges src into dst.
// Values in src override values in dst.
// Maps are merged recursively; other types are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
		} else {
			dst[key] = srcVal
		}
	}
	return dst
}
