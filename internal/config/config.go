package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultDBPath       = "out/tickets.db"
	DefaultReportPath   = "out/weekly_status.csv"
	DefaultConfigFile   = "tickets.toml"
	defaultLogLevel     = "warn"
	defaultLogMaxSizeMB = 4
	defaultLogMaxFiles  = 3
	defaultLogMaxAge    = 28
)

var ErrInvalidConfig = errors.New("invalid config")

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Report  ReportConfig  `toml:"report"`
	Logging LoggingConfig `toml:"logging"`
}

type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

type ReportConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
	// MaxAgeDays of zero keeps rotated files regardless of age.
	MaxAgeDays int  `toml:"max_age_days"`
	Compress   bool `toml:"compress"`
}

type LoadOptions struct {
	// ConfigPath is required to exist when set explicitly. The default
	// tickets.toml in the working directory is optional.
	ConfigPath string
	Env        map[string]string
	Flags      FlagOverrides
}

type FlagOverrides struct {
	DBPath     *string
	ReportPath *string
	LogLevel   *string
}

func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			DBPath: DefaultDBPath,
		},
		Report: ReportConfig{
			Path: DefaultReportPath,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			File:      "",
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxFiles:   defaultLogMaxFiles,
			MaxAgeDays: defaultLogMaxAge,
		},
	}
}

// Load layers defaults, the TOML file, TICKETS_* environment variables, and
// flag overrides, in that order.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	configPath, required := resolveConfigPath(opts)
	if err := loadAndApplyFile(configPath, required, &cfg); err != nil {
		return Config{}, err
	}

	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

type rawConfig struct {
	Storage *rawStorage `toml:"storage"`
	Report  *rawReport  `toml:"report"`
	Logging *rawLogging `toml:"logging"`
}

type rawStorage struct {
	DBPath *string `toml:"db_path"`
}

type rawReport struct {
	Path *string `toml:"path"`
}

type rawLogging struct {
	Level      *string `toml:"level"`
	File       *string `toml:"file"`
	MaxSizeMB  *int    `toml:"max_size_mb"`
	MaxFiles   *int    `toml:"max_files"`
	MaxAgeDays *int    `toml:"max_age_days"`
	Compress   *bool   `toml:"compress"`
}

func loadAndApplyFile(path string, required bool, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}

	applyRawConfig(cfg, raw)
	return nil
}

func applyRawConfig(cfg *Config, raw rawConfig) {
	if raw.Storage != nil {
		setString(raw.Storage.DBPath, &cfg.Storage.DBPath)
	}
	if raw.Report != nil {
		setString(raw.Report.Path, &cfg.Report.Path)
	}
	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
		setInt(raw.Logging.MaxAgeDays, &cfg.Logging.MaxAgeDays)
		if raw.Logging.Compress != nil {
			cfg.Logging.Compress = *raw.Logging.Compress
		}
	}
}

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "TICKETS_DB_PATH"); ok {
		cfg.Storage.DBPath = value
	}
	if value, ok := lookupEnv(opts, "TICKETS_REPORT_PATH"); ok {
		cfg.Report.Path = value
	}

	if value, ok := lookupEnv(opts, "TICKETS_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "TICKETS_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if value, ok := lookupEnv(opts, "TICKETS_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse TICKETS_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := lookupEnv(opts, "TICKETS_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse TICKETS_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxFiles = parsed
	}
	if value, ok := lookupEnv(opts, "TICKETS_LOG_MAX_AGE_DAYS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse TICKETS_LOG_MAX_AGE_DAYS: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxAgeDays = parsed
	}
	if value, ok := lookupEnv(opts, "TICKETS_LOG_COMPRESS"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: parse TICKETS_LOG_COMPRESS: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.Compress = parsed
	}

	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	setString(flags.DBPath, &cfg.Storage.DBPath)
	setString(flags.ReportPath, &cfg.Report.Path)
	setString(flags.LogLevel, &cfg.Logging.Level)
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Storage.DBPath) == "" {
		return fmt.Errorf("%w: storage.db_path must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Report.Path) == "" {
		return fmt.Errorf("%w: report.path must not be empty", ErrInvalidConfig)
	}
	if _, ok := validLogLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("%w: logging.level must be one of debug, info, warn, error (got %q)", ErrInvalidConfig, cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("%w: logging.max_size_mb must be > 0", ErrInvalidConfig)
	}
	if cfg.Logging.MaxFiles < 0 {
		return fmt.Errorf("%w: logging.max_files must be >= 0", ErrInvalidConfig)
	}
	if cfg.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("%w: logging.max_age_days must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func setString(raw *string, target *string) {
	if raw == nil {
		return
	}
	*target = *raw
}

func setInt(raw *int, target *int) {
	if raw == nil {
		return
	}
	*target = *raw
}

func resolveConfigPath(opts LoadOptions) (string, bool) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, true
	}
	if value, ok := lookupEnv(opts, "TICKETS_CONFIG_PATH"); ok && value != "" {
		return value, true
	}
	return DefaultConfigFile, false
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		if value, ok := opts.Env[key]; ok {
			return value, true
		}
	}
	return os.LookupEnv(key)
}
