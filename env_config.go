// env_config.go: Environment variable and config-file loading of Hestia configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// EnvConfig represents configuration loaded from environment variables.
// Pointer fields distinguish "unset" from the zero value.
type EnvConfig struct {
	Dialect          string        `env:"HESTIA_DIALECT"`
	Trim             *bool         `env:"HESTIA_TRIM"`
	CaseSensitive    *bool         `env:"HESTIA_CASE_SENSITIVE"`
	Encoding         string        `env:"HESTIA_ENCODING"`
	LineEnding       string        `env:"HESTIA_LINE_ENDING"`
	RejectDuplicates *bool         `env:"HESTIA_REJECT_DUPLICATES"`
	PollInterval     time.Duration `env:"HESTIA_POLL_INTERVAL"`

	AuditEnabled       *bool         `env:"HESTIA_AUDIT_ENABLED"`
	AuditOutputFile    string        `env:"HESTIA_AUDIT_OUTPUT_FILE"`
	AuditMinLevel      string        `env:"HESTIA_AUDIT_MIN_LEVEL"`
	AuditBufferSize    int           `env:"HESTIA_AUDIT_BUFFER_SIZE"`
	AuditFlushInterval time.Duration `env:"HESTIA_AUDIT_FLUSH_INTERVAL"`
}

// LoadConfigFromEnv builds a Config from HESTIA_* environment variables
// on top of the defaults.
func LoadConfigFromEnv() (*Config, error) {
	config := &Config{}
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config.WithDefaults(), nil
}

// LoadConfigMultiSource loads configuration with precedence:
//  1. Environment variables (highest priority)
//  2. Config file, when configFile is not empty
//  3. Default values (lowest priority)
func LoadConfigMultiSource(configFile string) (*Config, error) {
	config := &Config{}
	if configFile != "" {
		fileConfig, err := LoadConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config.WithDefaults(), nil
}

// applyEnv overrides config with every HESTIA_* variable that is set.
func applyEnv(config *Config) error {
	envConfig := &EnvConfig{}
	if err := loadEnvVars(envConfig); err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration")
	}
	if err := convertEnvToConfig(envConfig, config); err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to convert environment configuration")
	}
	return nil
}

func loadEnvVars(envConfig *EnvConfig) error {
	envConfig.Dialect = os.Getenv("HESTIA_DIALECT")
	envConfig.Encoding = os.Getenv("HESTIA_ENCODING")
	envConfig.LineEnding = os.Getenv("HESTIA_LINE_ENDING")
	envConfig.Trim = lookupBool("HESTIA_TRIM")
	envConfig.CaseSensitive = lookupBool("HESTIA_CASE_SENSITIVE")
	envConfig.RejectDuplicates = lookupBool("HESTIA_REJECT_DUPLICATES")

	if pollStr := os.Getenv("HESTIA_POLL_INTERVAL"); pollStr != "" {
		duration, err := time.ParseDuration(pollStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid HESTIA_POLL_INTERVAL format")
		}
		envConfig.PollInterval = duration
	}

	envConfig.AuditEnabled = lookupBool("HESTIA_AUDIT_ENABLED")
	envConfig.AuditOutputFile = os.Getenv("HESTIA_AUDIT_OUTPUT_FILE")
	envConfig.AuditMinLevel = os.Getenv("HESTIA_AUDIT_MIN_LEVEL")

	if bufferStr := os.Getenv("HESTIA_AUDIT_BUFFER_SIZE"); bufferStr != "" {
		buffer, err := strconv.Atoi(bufferStr)
		if err != nil || buffer <= 0 {
			return errors.New(ErrCodeInvalidConfig, "invalid HESTIA_AUDIT_BUFFER_SIZE value")
		}
		envConfig.AuditBufferSize = buffer
	}

	if flushStr := os.Getenv("HESTIA_AUDIT_FLUSH_INTERVAL"); flushStr != "" {
		duration, err := time.ParseDuration(flushStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid HESTIA_AUDIT_FLUSH_INTERVAL format")
		}
		envConfig.AuditFlushInterval = duration
	}
	return nil
}

func convertEnvToConfig(envConfig *EnvConfig, config *Config) error {
	if envConfig.Dialect != "" {
		d, ok := DialectByName(envConfig.Dialect)
		if !ok {
			return errors.New(ErrCodeInvalidConfig, "invalid HESTIA_DIALECT (want ini or strict)")
		}
		config.Dialect = d
	}
	if envConfig.Trim != nil || envConfig.CaseSensitive != nil {
		if config.Dialect == (Dialect{}) {
			config.Dialect = INIDialect()
		}
		if envConfig.Trim != nil {
			config.Dialect.Trim = *envConfig.Trim
		}
		if envConfig.CaseSensitive != nil {
			config.Dialect.CaseSensitive = *envConfig.CaseSensitive
		}
	}

	if envConfig.Encoding != "" {
		config.Encoding = envConfig.Encoding
	}
	if envConfig.LineEnding != "" {
		config.LineEnding = envConfig.LineEnding
	}
	if envConfig.RejectDuplicates != nil {
		config.RejectDuplicates = *envConfig.RejectDuplicates
	}
	if envConfig.PollInterval != 0 {
		config.PollInterval = envConfig.PollInterval
	}

	if envConfig.AuditEnabled != nil {
		config.Audit.Enabled = *envConfig.AuditEnabled
	}
	if envConfig.AuditOutputFile != "" {
		config.Audit.OutputFile = envConfig.AuditOutputFile
	}
	if envConfig.AuditMinLevel != "" {
		level, ok := ParseAuditLevel(envConfig.AuditMinLevel)
		if !ok {
			return errors.New(ErrCodeInvalidConfig, "invalid audit level")
		}
		config.Audit.MinLevel = level
	}
	if envConfig.AuditBufferSize > 0 {
		config.Audit.BufferSize = envConfig.AuditBufferSize
	}
	if envConfig.AuditFlushInterval > 0 {
		config.Audit.FlushInterval = envConfig.AuditFlushInterval
	}
	return nil
}

// LoadConfigFile reads a Config from a strict-dialect file:
//
//	[store]
//	dialect=ini
//	encoding=utf-8
//	line_ending=lf
//	file_mode=0644
//	reject_duplicates=false
//	poll_interval=1s
//
//	[audit]
//	enabled=true
//	output_file=/var/log/hestia/audit.db
//	min_level=INFO
//	buffer_size=1000
//	flush_interval=5s
//
// Absent keys keep their zero value so that WithDefaults can fill them.
func LoadConfigFile(path string) (*Config, error) {
	codec, err := lookupEncoding("utf-8")
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(path, codec, StrictDialect(), ParseOptions{RejectDuplicates: true})
	if err != nil {
		if HasCode(err, ErrCodeFileNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse config file "+path)
	}

	var (
		dialect, encoding, lineEnding, fileMode, minLevel string
		cfg                                               Config
	)
	err = NewConfigBinder(doc).
		BindString(&dialect, "store.dialect").
		BindString(&encoding, "store.encoding").
		BindString(&lineEnding, "store.line_ending").
		BindString(&fileMode, "store.file_mode").
		BindBool(&cfg.RejectDuplicates, "store.reject_duplicates").
		BindDuration(&cfg.PollInterval, "store.poll_interval").
		BindBool(&cfg.Audit.Enabled, "audit.enabled").
		BindString(&cfg.Audit.OutputFile, "audit.output_file").
		BindString(&minLevel, "audit.min_level").
		BindInt(&cfg.Audit.BufferSize, "audit.buffer_size").
		BindDuration(&cfg.Audit.FlushInterval, "audit.flush_interval").
		Apply()
	if err != nil {
		return nil, err
	}

	if dialect != "" {
		d, ok := DialectByName(dialect)
		if !ok {
			return nil, errors.New(ErrCodeInvalidConfig, "unknown dialect "+dialect).
				WithContext("path", path)
		}
		cfg.Dialect = d
	}
	cfg.Encoding = encoding
	cfg.LineEnding = lineEnding
	if fileMode != "" {
		mode, err := strconv.ParseUint(strings.TrimSpace(fileMode), 8, 32)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid file_mode "+fileMode).
				WithContext("path", path)
		}
		cfg.FileMode = os.FileMode(mode)
	}
	if minLevel != "" {
		level, ok := ParseAuditLevel(minLevel)
		if !ok {
			return nil, errors.New(ErrCodeInvalidConfig, "invalid audit level "+minLevel).
				WithContext("path", path)
		}
		cfg.Audit.MinLevel = level
	}
	return &cfg, nil
}

// lookupBool returns nil when the variable is unset.
func lookupBool(key string) *bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	b := parseBool(value)
	return &b
}

// parseBool parses boolean values from environment variables
// Supports: true/false, 1/0, yes/no, on/off, enabled/disabled
func parseBool(value string) bool {
	b, err := parseBoolStrict(value)
	return err == nil && b
}

// GetEnvWithDefault returns environment variable value or default if not set
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDurationWithDefault returns environment variable as duration or default
func GetEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvIntWithDefault returns environment variable as int or default
func GetEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvBoolWithDefault returns environment variable as bool or default
func GetEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value)
	}
	return defaultValue
}
