// Package config defines runtime settings and loads them through viper from
// the environment and an optional config file.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StoreJetStream = "jetstream"
)

// Config contains all application settings.
type Config struct {
	Port           string        `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string      `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	MaxMessageSize int64         `mapstructure:"MAX_MESSAGE_SIZE" yaml:"max_message_size"`
	SendBuffer     int           `mapstructure:"SEND_BUFFER" yaml:"send_buffer"`
	Rooms          []string      `mapstructure:"ROOMS" yaml:"rooms"`
	HistoryLimit   int           `mapstructure:"HISTORY_LIMIT" yaml:"history_limit"`
	ShutdownAfter  time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
	LogLevel       string        `mapstructure:"LOG_LEVEL" yaml:"log_level"`

	StoreDriver       string        `mapstructure:"STORE_DRIVER" yaml:"store_driver"`
	SQLitePath        string        `mapstructure:"SQLITE_PATH" yaml:"sqlite_path"`
	NATSURL           string        `mapstructure:"NATS_URL" yaml:"nats_url"`
	NATSStream        string        `mapstructure:"NATS_STREAM" yaml:"nats_stream"`
	NATSSubjectPrefix string        `mapstructure:"NATS_SUBJECT_PREFIX" yaml:"nats_subject_prefix"`
	NATSMaxAge        time.Duration `mapstructure:"NATS_MAX_AGE" yaml:"nats_max_age"`

	PersistQueue   int           `mapstructure:"PERSIST_QUEUE" yaml:"persist_queue"`
	PersistWorkers int           `mapstructure:"PERSIST_WORKERS" yaml:"persist_workers"`
	PersistTimeout time.Duration `mapstructure:"PERSIST_TIMEOUT" yaml:"persist_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:              ":8080",
		AllowedOrigins:    []string{"http://localhost:8080"},
		MaxMessageSize:    4096,
		SendBuffer:        256,
		Rooms:             []string{"devops", "cloud computing", "covid19", "sports", "nodeJS"},
		HistoryLimit:      100,
		ShutdownAfter:     10 * time.Second,
		LogLevel:          "info",
		StoreDriver:       StoreMemory,
		SQLitePath:        "roomchat.db",
		NATSURL:           "nats://localhost:4222",
		NATSStream:        "CHAT_HISTORY",
		NATSSubjectPrefix: "chat",
		NATSMaxAge:        30 * 24 * time.Hour,
		PersistQueue:      1024,
		PersistWorkers:    2,
		PersistTimeout:    5 * time.Second,
	}
}

// Load binds every setting to its environment variable and default, then
// decodes viper's merged view into a sanitized Config.
func Load(v *viper.Viper) (*Config, error) {
	defaults := map[string]any{
		"PORT":                ":8080",
		"ALLOWED_ORIGINS":     "http://localhost:8080",
		"MAX_MESSAGE_SIZE":    4096,
		"SEND_BUFFER":         256,
		"ROOMS":               "devops,cloud computing,covid19,sports,nodeJS",
		"HISTORY_LIMIT":       100,
		"SHUTDOWN_TIMEOUT":    "10s",
		"LOG_LEVEL":           "info",
		"STORE_DRIVER":        StoreMemory,
		"SQLITE_PATH":         "roomchat.db",
		"NATS_URL":            "nats://localhost:4222",
		"NATS_STREAM":         "CHAT_HISTORY",
		"NATS_SUBJECT_PREFIX": "chat",
		"NATS_MAX_AGE":        "720h",
		"PERSIST_QUEUE":       1024,
		"PERSIST_WORKERS":     2,
		"PERSIST_TIMEOUT":     "5s",
	}

	v.AutomaticEnv()
	for key, value := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "failed to bind %s", key)
		}
		v.SetDefault(key, value)
	}

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "could not decode configuration")
	}
	c.Sanitize()
	return c, nil
}

// Sanitize replaces invalid or missing values with defaults.
func (c *Config) Sanitize() {
	def := Default()

	if c.Port == "" {
		c.Port = def.Port
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.ShutdownAfter <= 0 {
		c.ShutdownAfter = def.ShutdownAfter
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		c.LogLevel = def.LogLevel
	}

	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreJetStream:
	default:
		c.StoreDriver = def.StoreDriver
	}

	if c.PersistQueue <= 0 {
		c.PersistQueue = def.PersistQueue
	}
	if c.PersistWorkers <= 0 {
		c.PersistWorkers = def.PersistWorkers
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = def.PersistTimeout
	}

	c.AllowedOrigins = trimList(c.AllowedOrigins)
	c.Rooms = trimList(c.Rooms)
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
