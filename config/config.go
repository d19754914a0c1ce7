package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	VisionHub VisionHubConfig `mapstructure:"visionhub"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Session   SessionConfig   `mapstructure:"session"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig holds database settings (SQLite file).
type DBConfig struct {
	File string `mapstructure:"file"`
}

// VisionHubConfig holds settings for the remote recognition backend.
type VisionHubConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	OrgRef         string `mapstructure:"org_ref"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CameraConfig selects and configures the frame source.
type CameraConfig struct {
	// Source is either "snapshot" (HTTP still-frame camera) or "webcam" (local device).
	Source         string `mapstructure:"source"`
	SnapshotURL    string `mapstructure:"snapshot_url"`
	DeviceID       int    `mapstructure:"device_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// WorkflowConfig holds the named delays and cadences of the phase controller.
// All timing values are durations so tests can run the workflow on millisecond timers.
type WorkflowConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PruneInterval   time.Duration `mapstructure:"prune_interval"`
	StalenessWindow time.Duration `mapstructure:"staleness_window"`
	EnrollAckDelay  time.Duration `mapstructure:"enroll_ack_delay"`
	MatchAckDelay   time.Duration `mapstructure:"match_ack_delay"`
	MaxFrameSize    int           `mapstructure:"max_frame_size"`
	EncodeQuality   int           `mapstructure:"encode_quality"`
}

// SessionConfig holds settings for the anonymous trial session.
type SessionConfig struct {
	ExpiryDays int `mapstructure:"expiry_days"`
}

// MQTTConfig holds settings for the optional MQTT publisher.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// CleanupConfig holds retention settings for local history data.
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// I18nConfig holds localization settings.
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
	LocalesDir      string `mapstructure:"locales_dir"`
}

// Load reads the configuration from file, environment variables and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Environment variables overlay the file values
	v.AutomaticEnv()
	v.SetEnvPrefix("ATTENDKIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults defines the default configuration values.
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3200)
	v.SetDefault("server.data_dir", "/data")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/attend-kiosk.log")

	// DB
	v.SetDefault("db.file", "/data/attend-kiosk.db")

	// VisionHub backend
	v.SetDefault("visionhub.url", "http://localhost:8400")
	v.SetDefault("visionhub.timeout_seconds", 15)

	// Camera
	v.SetDefault("camera.source", "snapshot")
	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.timeout_seconds", 10)

	// Workflow cadences and acknowledgment delays
	v.SetDefault("workflow.poll_interval", 2*time.Second)
	v.SetDefault("workflow.prune_interval", 1*time.Second)
	v.SetDefault("workflow.staleness_window", 3*time.Second)
	v.SetDefault("workflow.enroll_ack_delay", 1500*time.Millisecond)
	v.SetDefault("workflow.match_ack_delay", 2*time.Second)
	v.SetDefault("workflow.max_frame_size", 800)
	v.SetDefault("workflow.encode_quality", 85)

	// Session
	v.SetDefault("session.expiry_days", 7)

	// MQTT
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "attend-kiosk")
	v.SetDefault("mqtt.topic", "attendkiosk")

	// Cleanup
	v.SetDefault("cleanup.retention_days", 30)

	// I18n
	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.locales_dir", "./web/locales")
}

// ensureDirectories makes sure all required directories exist.
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	logDir := filepath.Dir(cfg.Log.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
