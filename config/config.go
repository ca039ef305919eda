package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/tiglabs/baudschema/util/log"
)

const DEFAULT_CONFIG = `
# Mapping registry configuration.

[index]
name = "baud"
# create types on first use when a document arrives for an unknown type
dynamic = true
# version the index was created with, gates the stricter type name rules
created-version = "2.0.0"

[mapper]
# re-parse every admitted mapping and panic when it does not round-trip
assert-serialization = false

[analysis]
default-analyzer = "standard"
default-search-analyzer = "standard"
default-search-quote-analyzer = "standard"

[log]
#debug, info, warn, error
level = "info"
log-path = ""

[http]
addr = ":8817"
conn-limit = 1000
`

const (
	CONFIG_LOG_LEVEL_DEBUG = "debug"
	CONFIG_LOG_LEVEL_INFO  = "info"
	CONFIG_LOG_LEVEL_WARN  = "warn"
	CONFIG_LOG_LEVEL_ERROR = "error"

	// ScriptIndexName is the index holding stored scripts and templates.
	ScriptIndexName = ".scripts"
)

var ErrInvalidCfg = errors.New("config error")

type Config struct {
	IndexCfg    IndexConfig    `toml:"index,omitempty" json:"index"`
	MapperCfg   MapperConfig   `toml:"mapper,omitempty" json:"mapper"`
	AnalysisCfg AnalysisConfig `toml:"analysis,omitempty" json:"analysis"`
	LogCfg      LogConfig      `toml:"log,omitempty" json:"log"`
	HttpCfg     HttpConfig     `toml:"http,omitempty" json:"http"`
}

// NewConfig decodes the defaults, then the file at path if any.
func NewConfig(path string) (*Config, error) {
	c := new(Config)
	if _, err := toml.Decode(DEFAULT_CONFIG, c); err != nil {
		return nil, errors.Wrap(err, "fail to decode default config")
	}

	if len(path) != 0 {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, errors.Wrapf(err, "fail to decode config file[%v]", path)
		}
	}

	if err := c.adjust(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfigString decodes the defaults, then s.
func LoadConfigString(s string) (*Config, error) {
	c := new(Config)
	if _, err := toml.Decode(DEFAULT_CONFIG, c); err != nil {
		return nil, errors.Wrap(err, "fail to decode default config")
	}
	if _, err := toml.Decode(s, c); err != nil {
		return nil, errors.Wrap(err, "fail to decode config string")
	}
	if err := c.adjust(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	c, err := LoadConfigString("")
	if err != nil {
		log.Panic("fail to load default config. err[%v]", err)
	}
	return c
}

func (c *Config) adjust() error {
	if err := c.IndexCfg.adjust(); err != nil {
		return err
	}
	if err := c.AnalysisCfg.adjust(); err != nil {
		return err
	}
	if err := c.LogCfg.adjust(); err != nil {
		return err
	}
	return c.HttpCfg.adjust()
}

type IndexConfig struct {
	Name           string  `toml:"name,omitempty" json:"name"`
	Dynamic        bool    `toml:"dynamic" json:"dynamic"`
	CreatedVersion Version `toml:"created-version,omitempty" json:"created-version"`
}

func (cfg *IndexConfig) adjust() error {
	if err := adjustString(&cfg.Name, "no index name"); err != nil {
		return err
	}
	if strings.ContainsAny(cfg.Name, ", #") {
		return errors.Wrapf(ErrInvalidCfg, "invalid index name[%v]", cfg.Name)
	}
	if cfg.CreatedVersion.IsZero() {
		cfg.CreatedVersion = CurrentVersion
	}
	return nil
}

type MapperConfig struct {
	AssertSerialization bool `toml:"assert-serialization" json:"assert-serialization"`
}

type AnalysisConfig struct {
	DefaultAnalyzer            string `toml:"default-analyzer,omitempty" json:"default-analyzer"`
	DefaultSearchAnalyzer      string `toml:"default-search-analyzer,omitempty" json:"default-search-analyzer"`
	DefaultSearchQuoteAnalyzer string `toml:"default-search-quote-analyzer,omitempty" json:"default-search-quote-analyzer"`
}

func (cfg *AnalysisConfig) adjust() error {
	if err := adjustString(&cfg.DefaultAnalyzer, "no default analyzer"); err != nil {
		return err
	}
	if cfg.DefaultSearchAnalyzer == "" {
		cfg.DefaultSearchAnalyzer = cfg.DefaultAnalyzer
	}
	if cfg.DefaultSearchQuoteAnalyzer == "" {
		cfg.DefaultSearchQuoteAnalyzer = cfg.DefaultSearchAnalyzer
	}
	return nil
}

type LogConfig struct {
	Level   string `toml:"level,omitempty" json:"level"`
	LogPath string `toml:"log-path,omitempty" json:"log-path"`
}

func (cfg *LogConfig) adjust() error {
	switch cfg.Level {
	case CONFIG_LOG_LEVEL_DEBUG, CONFIG_LOG_LEVEL_INFO, CONFIG_LOG_LEVEL_WARN, CONFIG_LOG_LEVEL_ERROR:
		return nil
	}
	return errors.Wrapf(ErrInvalidCfg, "invalid log level[%v]", cfg.Level)
}

type HttpConfig struct {
	Addr      string `toml:"addr,omitempty" json:"addr"`
	ConnLimit int    `toml:"conn-limit,omitempty" json:"conn-limit"`
}

func (cfg *HttpConfig) adjust() error {
	if err := adjustString(&cfg.Addr, "no http addr"); err != nil {
		return err
	}
	if cfg.ConnLimit < 0 {
		return errors.Wrapf(ErrInvalidCfg, "negative conn-limit[%d]", cfg.ConnLimit)
	}
	return nil
}

func adjustString(v *string, errMsg string) error {
	*v = strings.TrimSpace(*v)
	if len(*v) == 0 {
		return errors.Wrap(ErrInvalidCfg, errMsg)
	}
	return nil
}
