package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aleister1102/ratekeeper/internal/common/errorwrapper"
	"github.com/aleister1102/ratekeeper/internal/logger"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	LogConfig        logger.FileLogConfig `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	HTTPClientConfig HTTPClientConfig     `json:"http_client_config,omitempty" yaml:"http_client_config,omitempty"`
	RetryConfig      RetryConfig          `json:"retry_config,omitempty" yaml:"retry_config,omitempty"`
	MetricsConfig    MetricsConfig        `json:"metrics_config,omitempty" yaml:"metrics_config,omitempty"`
	StorageConfig    StorageConfig        `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	ProbeConfig      ProbeConfig          `json:"probe_config,omitempty" yaml:"probe_config,omitempty"`
	BatchConfig      BatchConfig          `json:"batch_config,omitempty" yaml:"batch_config,omitempty"`

	ResourceLimiterConfig ResourceLimiterConfig `json:"resource_limiter_config,omitempty" yaml:"resource_limiter_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:        logger.NewDefaultFileLogConfig(),
		HTTPClientConfig: NewDefaultHTTPClientConfig(),
		RetryConfig:      NewDefaultRetryConfig(),
		MetricsConfig:    NewDefaultMetricsConfig(),
		StorageConfig:    NewDefaultStorageConfig(),
		ProbeConfig:      NewDefaultProbeConfig(),
		BatchConfig:      NewDefaultBatchConfig(),

		ResourceLimiterConfig: NewDefaultResourceLimiterConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// The path is resolved with GetConfigPath. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. Values missing from the file keep
// their defaults.
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		if providedPath != "" {
			return nil, errorwrapper.NewValidationError("config_file", providedPath, "config file does not exist")
		}
		logger.Debug().Msg("No config file found, using defaults")
		return cfg, nil
	}

	data, err := loadConfigFileContent(filePath)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to load config file content")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse config content")
	}

	logger.Debug().Str("path", filePath).Msg("Loaded configuration file")
	return cfg, nil
}

func loadConfigFileContent(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errorwrapper.NewValidationError("config_file", filePath, "path is a directory")
	}
	if info.Size() > MaxConfigFileSizeByte {
		return nil, errorwrapper.NewValidationError("config_file", filePath, "config file exceeds 10MB")
	}
	return os.ReadFile(filePath)
}

// parseConfigContent parses the config content based on file extension
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	if isYAMLFile(filepath.Ext(filePath)) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errorwrapper.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errorwrapper.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
	}
	return nil
}

func isYAMLFile(ext string) bool {
	return ext == ".yaml" || ext == ".yml"
}
