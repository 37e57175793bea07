package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when Load receives an empty path.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Server struct {
		Address         string `yaml:"address"`
		APIKey          string `yaml:"api_key"`
		RateLimitPerSec int    `yaml:"rate_limit_per_sec"`
		RateLimitBurst  int    `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	ClinicConfigPath string `yaml:"clinic_config_path"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address       string `yaml:"address"`
		Password      string `yaml:"password"`
		DB            int    `yaml:"db"`
		ChannelPrefix string `yaml:"channel_prefix"`
		QueueSize     int    `yaml:"queue_size"`
	} `yaml:"redis"`

	Telegram struct {
		BotToken       string  `yaml:"bot_token"`
		ManagerChatIDs []int64 `yaml:"manager_chat_ids"`
		QueueSize      int     `yaml:"queue_size"`
	} `yaml:"telegram"`

	Calendar struct {
		Enabled           bool   `yaml:"enabled"`
		CalendarID        string `yaml:"calendar_id"`
		CredentialsFile   string `yaml:"credentials_file"`
		ClientSecretFile  string `yaml:"client_secret_file"`
		TokenFile         string `yaml:"token_file"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		QueueSize         int    `yaml:"queue_size"`
	} `yaml:"calendar"`

	Monitoring struct {
		GRPCHealthPort    int  `yaml:"grpc_health_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// Load reads the service config. A .env file next to the working directory is
// loaded first so ${ENV_VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Journal.Enabled {
		if err = os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 5
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 10
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/receptionist.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "backups"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 14
	}
	if c.Redis.QueueSize <= 0 {
		c.Redis.QueueSize = 100
	}
	if c.Telegram.QueueSize <= 0 {
		c.Telegram.QueueSize = 100
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Calendar.RequestsPerMinute <= 0 {
		c.Calendar.RequestsPerMinute = 60
	}
	if c.Calendar.QueueSize <= 0 {
		c.Calendar.QueueSize = 100
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

// LoadClinic loads the clinic schedule referenced by ClinicConfigPath, or the
// reference clinic when no path is set.
func (c *Config) LoadClinic() (*ClinicConfig, error) {
	if c.ClinicConfigPath == "" {
		return DefaultClinicConfig(), nil
	}
	return LoadClinicConfig(c.ClinicConfigPath)
}
