package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  int    `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

// ClientConfig configures the importer and its workflow timings.
type ClientConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`

	PollInterval        time.Duration `yaml:"poll_interval"`
	AutosaveDelay       time.Duration `yaml:"autosave_delay"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	UploadBaseTimeout   time.Duration `yaml:"upload_base_timeout"`
	UploadPerMiBTimeout time.Duration `yaml:"upload_per_mib_timeout"`
	UploadCompleteDelay time.Duration `yaml:"upload_complete_delay"`
}

type ServerConfig struct {
	Port string `yaml:"port"`

	// Bearer token required on every API request. Empty disables the check.
	Token string `yaml:"token"`

	// Simulated latency of the background mapping and import jobs
	MappingDelay time.Duration `yaml:"mapping_delay"`
	ImportDelay  time.Duration `yaml:"import_delay"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	PreviewRows    int   `yaml:"preview_rows"`
	ImportWorkers  int   `yaml:"import_workers"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type"`

	// Local storage options
	OutputDir string `yaml:"output_dir"`

	// GCS storage options
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config *Config

	// Unmarshal the YAML data into the struct
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}

	config.setDefaults()
	return config, nil
}

// Set defaults if not provided
func (c *Config) setDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8080/api/v1"
	}
	if c.Client.PollInterval <= 0 {
		c.Client.PollInterval = 2 * time.Second
	}
	if c.Client.AutosaveDelay <= 0 {
		c.Client.AutosaveDelay = time.Second
	}
	if c.Client.RequestTimeout <= 0 {
		c.Client.RequestTimeout = 30 * time.Second
	}
	if c.Client.UploadBaseTimeout <= 0 {
		c.Client.UploadBaseTimeout = 60 * time.Second
	}
	if c.Client.UploadPerMiBTimeout <= 0 {
		c.Client.UploadPerMiBTimeout = 10 * time.Second
	}
	if c.Client.UploadCompleteDelay <= 0 {
		c.Client.UploadCompleteDelay = 600 * time.Millisecond
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MappingDelay < 0 {
		c.Server.MappingDelay = 0
	}
	if c.Server.ImportDelay < 0 {
		c.Server.ImportDelay = 0
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 50 << 20
	}
	if c.Server.PreviewRows <= 0 {
		c.Server.PreviewRows = 10
	}
	if c.Server.ImportWorkers <= 0 {
		c.Server.ImportWorkers = 4
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}

	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "output"
	}
}
