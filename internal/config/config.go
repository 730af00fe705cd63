package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Output   OutputConfig   `mapstructure:"output"`
	Download DownloadConfig `mapstructure:"download"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the metrics endpoint listen address
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// BackendConfig holds listing-API and image-fetch configuration
type BackendConfig struct {
	Endpoint             string   `mapstructure:"endpoint"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	PageSize             int      `mapstructure:"page_size"`
	UserAgent            string   `mapstructure:"user_agent"`
	RelayEndpoints       []string `mapstructure:"relay_endpoints"`
}

// OutputConfig holds where and how results are written
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Streaming bool   `mapstructure:"streaming"`
}

// DownloadConfig describes the download operation to run
type DownloadConfig struct {
	SourceURL string   `mapstructure:"source_url"`
	Term      string   `mapstructure:"term"`
	Search    bool     `mapstructure:"search"`
	AllowList []string `mapstructure:"allow_list"`
	DenyList  []string `mapstructure:"deny_list"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")

	viper.SetDefault("backend.timeout", 30)
	viper.SetDefault("backend.max_retries", 3)
	viper.SetDefault("backend.max_requests_per_second", 5)
	viper.SetDefault("backend.page_size", 10)
	viper.SetDefault("backend.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	viper.SetDefault("output.dir", ".")
	viper.SetDefault("output.streaming", true)

	viper.SetDefault("log.level", "info")
}
