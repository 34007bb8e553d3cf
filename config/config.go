package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Editor  EditorConfig  `yaml:"editor"`
	AI      AIConfig      `yaml:"ai"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// BaseURL is the externally reachable address of this backend,
	// e.g. "http://192.168.1.10:8080". The document editor container
	// downloads files from and posts callbacks to this address, so
	// "localhost" usually does not work here.
	BaseURL string `yaml:"base_url"`
}

type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
	Database  string `yaml:"database"`
}

type EditorConfig struct {
	// JWTSecret is shared with the document server; every editor config
	// payload is signed with it.
	JWTSecret string `yaml:"jwt_secret"`
	Lang      string `yaml:"lang"`
}

type AIConfig struct {
	Provider       string            `yaml:"provider"` // ollama, siliconflow
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	MaxRetries     int               `yaml:"max_retries"`
	Ollama         OllamaConfig      `yaml:"ollama"`
	SiliconFlow    SiliconFlowConfig `yaml:"siliconflow"`
}

type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

type SiliconFlowConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploads"
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = "./contracts.db"
	}
	if cfg.Editor.Lang == "" {
		cfg.Editor.Lang = "zh-CN"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "siliconflow"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 2
	}
	if cfg.AI.Ollama.URL == "" {
		cfg.AI.Ollama.URL = "http://127.0.0.1:11434"
	}
	if cfg.AI.Ollama.Model == "" {
		cfg.AI.Ollama.Model = "deepseek-v2"
	}
	if cfg.AI.SiliconFlow.BaseURL == "" {
		cfg.AI.SiliconFlow.BaseURL = "https://api.siliconflow.cn/v1"
	}
	if cfg.AI.SiliconFlow.Model == "" {
		cfg.AI.SiliconFlow.Model = "deepseek-ai/DeepSeek-V3"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// validate rejects configurations the server cannot safely start with.
func (c *Config) validate() error {
	if c.Editor.JWTSecret == "" {
		return fmt.Errorf("editor.jwt_secret is required: the document editor rejects unsigned configs")
	}
	switch c.AI.Provider {
	case "ollama", "siliconflow":
	default:
		return fmt.Errorf("unknown ai.provider %q (expected ollama or siliconflow)", c.AI.Provider)
	}
	return nil
}
