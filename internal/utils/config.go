package utils

import (
	"github.com/goldmansoap/findmycat-agent/pkg/file"
)

// Defaults applied when the config file is absent or a field is unset.
const (
	DefaultServerURL      = "https://findmycat.goldmansoap.com"
	DefaultCachePath      = "~/Library/Caches/com.apple.findmy.fmipcore/Items.data"
	DefaultCredentialFile = "~/.findmycat/config.json"
	DefaultPollInterval   = 10
	DefaultBatchSize      = 10
	DefaultHTTPTimeout    = 30
)

// Config represents the structure of the configuration file.
type Config struct {
	Server struct {
		URL     string `yaml:"url"`     // FindMyCat server base URL
		Timeout int    `yaml:"timeout"` // HTTP client timeout (in seconds)
	} `yaml:"server"`

	Cache struct {
		Path string `yaml:"path"` // Path to the Find My cache file
	} `yaml:"cache"`

	Credentials struct {
		File string `yaml:"file"` // Path to the credential dotfile
	} `yaml:"credentials"`

	Sync struct {
		Interval  int `yaml:"interval"`   // Interval between poll cycles (in seconds)
		BatchSize int `yaml:"batch_size"` // Logical batch size for sending
	} `yaml:"sync"`

	Logging struct {
		Level string `yaml:"level"` // Log level (debug, info, warn, error)
		File  string `yaml:"file"`  // Optional log file, console-only if empty
	} `yaml:"logging"`
}

// LoadConfig loads the YAML configuration from the specified file. A missing
// file is not fatal: the agent runs on defaults, overridable by flags.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config

	exists, err := fileClient.IsFileExists(filename)
	if err == nil && exists {
		if err := fileClient.ReadYamlFile(filename, &config); err != nil {
			return nil, err
		}
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = DefaultHTTPTimeout
	}
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}
	if c.Credentials.File == "" {
		c.Credentials.File = DefaultCredentialFile
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = DefaultPollInterval
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = DefaultBatchSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
