// Package config loads the minutes configuration.
//
// The file may be JSON, TOML or YAML, chosen by extension. Values from the
// file are merged over Default(), so a partial file is enough.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	mhttp "github.com/roelfdiedericks/minutes/internal/http"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/media"
	"github.com/roelfdiedericks/minutes/internal/metrics"
	"github.com/roelfdiedericks/minutes/internal/paths"
	"github.com/roelfdiedericks/minutes/internal/stt"
	"github.com/roelfdiedericks/minutes/internal/user"
)

// Config is the complete minutes configuration.
type Config struct {
	HTTP    mhttp.Config   `json:"http" toml:"http" yaml:"http"`
	STT     stt.Config     `json:"stt" toml:"stt" yaml:"stt"`
	Media   media.Config   `json:"media" toml:"media" yaml:"media"`
	Metrics metrics.Config `json:"metrics" toml:"metrics" yaml:"metrics"`
	Logging LoggingConfig  `json:"logging" toml:"logging" yaml:"logging"`
}

// LoggingConfig sets the log level; --debug and --trace override it.
type LoggingConfig struct {
	Level string `json:"level" toml:"level" yaml:"level"` // "trace", "debug", "info", "warn", "error"
}

// Format is a config file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension. Unknown extensions are JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: mhttp.Config{
			Listen: mhttp.DefaultListen,
		},
		STT: stt.Config{
			Provider:       "mock",
			LanguageCode:   stt.DefaultLanguageCode,
			TimeoutSeconds: int(stt.DefaultTimeout.Seconds()),
			Google: stt.GoogleConfig{
				Model:           "default",
				SampleRateHertz: 16000,
			},
			OpenAI: stt.OpenAIConfig{
				Model: "whisper-1",
			},
			Groq: stt.GroqConfig{
				Model: "whisper-large-v3",
			},
		},
		Media: media.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load resolves the config path (see paths.ConfigPath), reads the file and
// merges it over the defaults. With no config file the defaults are returned
// along with an empty path.
func Load(explicit string) (*Config, string, error) {
	path, err := paths.ConfigPath(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		L_info("config: no config file found, using defaults")
		return Default(), "", nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFile reads a single config file and merges it over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	file, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg := Default()
	if err := mergo.Merge(cfg, file, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	L_debug("config: loaded", "path", path, "provider", cfg.STT.Provider, "listen", cfg.HTTP.Listen)
	return cfg, nil
}

// Decode parses data in the given format without applying defaults.
func Decode(data []byte, format Format) (*Config, error) {
	cfg := &Config{}
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Encode serializes cfg in the given format.
func Encode(cfg *Config, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatYAML:
		return yaml.Marshal(cfg)
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

var validProviders = map[string]bool{
	"":           true,
	"google":     true,
	"openai":     true,
	"groq":       true,
	"mock":       true,
	"whispercpp": true,
}

var validLevels = map[string]bool{
	"":      true,
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks values that would otherwise fail late, at first use.
// Provider credentials are not checked here: a provider that cannot start
// leaves the app running with transcription reporting the setup error.
func (c *Config) Validate() error {
	var errs []error

	if err := mhttp.ValidateListen(c.HTTP.Listen); err != nil {
		errs = append(errs, fmt.Errorf("http.listen: %w", err))
	}
	if !validProviders[c.STT.Provider] {
		errs = append(errs, fmt.Errorf("stt.provider: unknown provider %q", c.STT.Provider))
	}
	if c.STT.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("stt.timeoutSeconds: must not be negative"))
	}
	if c.Media.TTL < 0 {
		errs = append(errs, fmt.Errorf("media.ttl: must not be negative"))
	}
	if c.Media.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("media.maxSize: must not be negative"))
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	for name, hash := range c.HTTP.Users {
		if err := user.ValidateUsername(name); err != nil {
			errs = append(errs, fmt.Errorf("http.users: %w", err))
			continue
		}
		if err := user.ValidateHash(hash); err != nil {
			errs = append(errs, fmt.Errorf("http.users.%s: %w (generate one with \"minutes passwd %s\")", name, err, name))
		}
	}

	return errors.Join(errs...)
}
