package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies the syntax of a configuration document.
type Format string

// Supported document formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the document format from the file extension.
// Anything that is not YAML or TOML is read as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Loader loads configuration from the filesystem.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads, decodes and validates the configuration at path.
// Decoding failures are CONFIG_PARSE errors and validation failures are
// CONFIG_INVALID errors; both carry the path as context.
func (l *Loader) Load(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Configuration{}, NewConfigNotFoundError(path)
		}
		return Configuration{}, fmt.Errorf("read configuration %s: %w", path, err)
	}

	cfg, err := Parse(data, FormatForPath(path))
	if err != nil {
		return Configuration{}, NewConfigParseError(path, err)
	}
	cfg.source = path

	if errs := Validate(cfg); errs.HasErrors() {
		return Configuration{}, NewConfigInvalidError(path, errs)
	}
	return cfg, nil
}

// Parse decodes a document into a Configuration with defaults applied.
// Unknown keys are recorded, not rejected; missing keys keep zero values.
func Parse(data []byte, format Format) (Configuration, error) {
	raw, err := decodeRaw(data, format)
	if err != nil {
		return Configuration{}, err
	}

	var cfg Configuration
	var meta mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   &cfg,
		Metadata: &meta,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return Configuration{}, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Configuration{}, err
	}

	cfg.unknownKeys = append([]string(nil), meta.Unused...)
	sort.Strings(cfg.unknownKeys)
	cfg.applyDefaults()
	return cfg, nil
}

func decodeRaw(data []byte, format Format) (map[string]interface{}, error) {
	raw := map[string]interface{}{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, errors.New("json: document is empty")
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	}

	if raw == nil {
		raw = map[string]interface{}{}
	}
	return raw, nil
}

// secondsToDurationHook reads bare numbers as seconds for duration fields.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case uint64:
			return time.Duration(v) * time.Second, nil
		}
		return data, nil
	}
}
