package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the struct that holds the configuration of the application
type Config struct {
	App        AppConfig        `json:"app"`
	Downloader DownloaderConfig `json:"downloader"`
	WebPanel   WebPanelConfig   `json:"webpanel"`
}

type AppConfig struct {
	Name     string `json:"name"`
	LogLevel int    `json:"logLevel"`
	Env      string `json:"env"`
}

type DownloaderConfig struct {
	OutputDir string `json:"outputDir"`
	UserAgent string `json:"userAgent"`
}

type WebPanelConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultUserAgent identifies a mobile browser so the share page is served
// in its server-rendered form.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 11; SAMSUNG SM-G973U) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/14.2 Chrome/87.0.4280.141 Mobile Safari/537.36"

// Load config from config.json
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("app.name", "douyindl")
	v.SetDefault("app.logLevel", 4) // logrus.InfoLevel
	v.SetDefault("app.env", "development")
	v.SetDefault("downloader.outputDir", "douyin_downloads")
	v.SetDefault("downloader.userAgent", DefaultUserAgent)
	v.SetDefault("webpanel.host", "0.0.0.0")
	v.SetDefault("webpanel.port", 8080)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override from environment variable if set
	if envDir := os.Getenv("DOWNLOAD_DIR"); envDir != "" {
		config.Downloader.OutputDir = envDir
	}

	return &config, nil
}

// Get config for app
func (c *Config) GetAppConfig() *AppConfig {
	return &c.App
}

// Get config for downloader
func (c *Config) GetDownloaderConfig() *DownloaderConfig {
	return &c.Downloader
}

// Get config for web panel
func (c *Config) GetWebPanelConfig() *WebPanelConfig {
	return &c.WebPanel
}
