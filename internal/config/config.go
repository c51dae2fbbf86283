// Package config loads intelctl settings.
//
// LAYERS (later wins):
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file (--config)
//  3. A .env file, copied into the process environment by godotenv
//  4. INTEL_* environment variables
//
// Environment keys map onto YAML keys by dropping the prefix, lower-casing,
// and turning the first "_" into a section separator:
//
//	INTEL_DATABASE_PATH            → database.path
//	INTEL_DATABASE_BUSY_TIMEOUT_MS → database.busy_timeout_ms
//	INTEL_LOG_LEVEL                → log.level
//
// Nothing here is global: Load returns a *Config and callers pass it on.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/intelligence-platform/internal/auth"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "INTEL_"

type Config struct {
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Data     DataConfig     `koanf:"data"     yaml:"data"`
	Auth     AuthConfig     `koanf:"auth"     yaml:"auth"`
	Log      LogConfig      `koanf:"log"      yaml:"log"`
}

type DatabaseConfig struct {
	Path          string `koanf:"path"            yaml:"path"`
	BusyTimeoutMS int    `koanf:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

type DataConfig struct {
	Dir       string     `koanf:"dir"        yaml:"dir"`
	UsersFile string     `koanf:"users_file" yaml:"users_file"`
	Delimiter string     `koanf:"delimiter"  yaml:"delimiter"`
	Bulk      []BulkFile `koanf:"bulk"       yaml:"bulk"`
}

// BulkFile is one tabular file loaded by setup, relative to Data.Dir unless
// absolute.
type BulkFile struct {
	File  string `koanf:"file"  yaml:"file"`
	Table string `koanf:"table" yaml:"table"`
}

type AuthConfig struct {
	BcryptCost int `koanf:"bcrypt_cost" yaml:"bcrypt_cost"`
}

type LogConfig struct {
	Level  string `koanf:"level"  yaml:"level"`  // debug, info, warn, error
	Format string `koanf:"format" yaml:"format"` // text, json
}

// DefaultBulk is the bulk file list used when none is configured.
func DefaultBulk() []BulkFile {
	return []BulkFile{
		{File: "cyber_incidents.csv", Table: "incidents"},
		{File: "datasets_metadata.csv", Table: "dataset_metadata"},
		{File: "it_tickets.csv", Table: "it_tickets"},
	}
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:          filepath.Join("DATA", "intelligence_platform.db"),
			BusyTimeoutMS: 5000,
		},
		Data: DataConfig{
			Dir:       "DATA",
			UsersFile: "users.txt",
			Delimiter: ",",
		},
		Auth: AuthConfig{BcryptCost: auth.DefaultCost},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from the layers described in the package comment.
//
// configPath may be empty (no YAML layer); a named file that does not exist
// is an error. envFile may be empty too; a missing .env file is ignored.
// The result has been validated.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if len(cfg.Data.Bulk) == 0 {
		cfg.Data.Bulk = DefaultBulk()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps INTEL_DATA_USERS_FILE to data.users_file.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database.path is required")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("config: database.busy_timeout_ms must not be negative, got %d", c.Database.BusyTimeoutMS)
	}
	if strings.TrimSpace(c.Data.Dir) == "" {
		return errors.New("config: data.dir is required")
	}
	if strings.TrimSpace(c.Data.UsersFile) == "" {
		return errors.New("config: data.users_file is required")
	}
	if utf8.RuneCountInString(c.Data.Delimiter) != 1 {
		return fmt.Errorf("config: data.delimiter must be a single character, got %q", c.Data.Delimiter)
	}
	switch c.Delimiter() {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("config: data.delimiter %q is not allowed", c.Data.Delimiter)
	}
	for i, b := range c.Data.Bulk {
		if strings.TrimSpace(b.File) == "" || strings.TrimSpace(b.Table) == "" {
			return fmt.Errorf("config: data.bulk[%d] needs both file and table", i)
		}
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: auth.bcrypt_cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeoutMS) * time.Millisecond
}

func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.Data.Delimiter)
	return r
}

// DataPath resolves name against Data.Dir. Absolute names are kept as is.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Data.Dir, name)
}

func (c *Config) UsersPath() string {
	return c.DataPath(c.Data.UsersFile)
}
