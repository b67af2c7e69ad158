package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Ingest    IngestConfig    `yaml:"ingest"`
	OCR       OCRConfig       `yaml:"ocr"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// IngestConfig configures screenshot ingestion.
type IngestConfig struct {
	ImageDir string `yaml:"image_dir"`
}

// OCRConfig configures the external OCR engine.
type OCRConfig struct {
	Binary string `yaml:"binary"`
	Lang   string `yaml:"lang"`
}

// DashboardConfig configures dashboard rendering.
type DashboardConfig struct {
	RankingLimit int `yaml:"ranking_limit"`
	PostsLimit   int `yaml:"posts_limit"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./room.db"},
		Server:   ServerConfig{Port: 8080},
		Ingest:   IngestConfig{ImageDir: "./image"},
		OCR:      OCRConfig{Binary: "tesseract", Lang: "jpn"},
		Dashboard: DashboardConfig{
			RankingLimit: 10,
			PostsLimit:   20,
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROOMSTAT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ROOMSTAT_IMAGE_DIR"); v != "" {
		cfg.Ingest.ImageDir = v
	}
	if v := os.Getenv("ROOMSTAT_OCR_BIN"); v != "" {
		cfg.OCR.Binary = v
	}
	if v := os.Getenv("ROOMSTAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}
