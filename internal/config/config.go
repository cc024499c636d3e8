package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM     LLMConfig     `yaml:"llm" validate:"required"`
	Paths   PathsConfig   `yaml:"paths"`
	Limits  Limits        `yaml:"limits" validate:"required"`
	Logging LoggingConfig `yaml:"logging"`
}

type LLMConfig struct {
	Host    string `yaml:"host" validate:"required,url"`
	Model   string `yaml:"model" validate:"required"`
	Timeout int    `yaml:"timeout" validate:"required,min=10,max=3600"`
}

type PathsConfig struct {
	ProjectsDir string `yaml:"projects_dir" validate:"required"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `yaml:"max_backups" validate:"omitempty,min=0,max=100"`
}

// Load reads the config file (if present), applies env overrides and
// defaults, and validates the result. A missing file is not an error; the
// defaults describe a stock local Ollama setup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	configPath := getConfigPath()
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Env vars override the file; the names match the original runtime's
	// conventions so an existing Ollama setup works unchanged.
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.LLM.Host = normalizeHost(host)
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		cfg.LLM.Model = model
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Host:    "http://localhost:11434",
			Model:   "llama3.1:8b",
			Timeout: 900,
		},
		Paths: PathsConfig{
			ProjectsDir: "./projects",
		},
		Limits: DefaultLimits(),
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join("logs", "novel-dev.log"),
			MaxSizeMB:  20,
			MaxBackups: 3,
		},
	}
}

func getConfigPath() string {
	if path := os.Getenv("NOVEL_DEV_CONFIG"); path != "" {
		return path
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "novel-dev", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "novel-dev", "config.yaml")
}

// normalizeHost accepts bare host:port values and adds the scheme.
func normalizeHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) applyDefaults() {
	if c.Paths.ProjectsDir == "" {
		c.Paths.ProjectsDir = "./projects"
	}
	c.Paths.ProjectsDir = expandTilde(c.Paths.ProjectsDir)

	if c.Limits.MaxRetries == 0 && c.Limits.RateLimit.RequestsPerMinute == 0 {
		c.Limits = DefaultLimits()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join("logs", "novel-dev.log")
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 20
	}
}

func (c *Config) validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Save writes the config back to its resolved path, creating the directory
// if needed.
func Save(cfg *Config) error {
	configPath := getConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(configPath, data, 0644)
}
