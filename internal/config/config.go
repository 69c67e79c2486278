// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qq940500529/oracle-feishu-sync/internal/syncerr"
)

// maxWriteBatchSize is the hard Feishu API cap on records per batch-create
// call. Larger configured values are clamped.
const maxWriteBatchSize = 500

// Config is the root configuration.
type Config struct {
	Oracle OracleConfig `yaml:"oracle"`
	Feishu FeishuConfig `yaml:"feishu"`
	Sync   SyncConfig   `yaml:"sync"`
	Notify NotifyConfig `yaml:"notify"`
}

// OracleConfig holds source database connection and table settings.
type OracleConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ServiceName string `yaml:"service_name"`
	User        string `yaml:"username"`
	Password    string `yaml:"password"`
	Table       string `yaml:"table_name"`
	SyncColumn  string `yaml:"sync_column"`
	PrimaryKey  string `yaml:"primary_key"`
	MaxConns    int    `yaml:"max_connections"`
}

// FeishuConfig holds Bitable app credentials and partition policy.
type FeishuConfig struct {
	AppID                string `yaml:"app_id"`
	AppSecret            string `yaml:"app_secret"`
	AppToken             string `yaml:"app_token"`
	BaseTableID          string `yaml:"base_table_id"` // optional pre-created first partition
	TableNamePrefix      string `yaml:"table_name_prefix"`
	MaxRowsPerTable      int    `yaml:"max_rows_per_table"`
	MaxRequestsPerSecond int    `yaml:"max_requests_per_second"`
	BaseURL              string `yaml:"base_url"` // override for testing
}

// SyncConfig holds engine tuning and file locations.
type SyncConfig struct {
	ReadBatchSize   int    `yaml:"read_batch_size"`
	WriteBatchSize  int    `yaml:"write_batch_size"`
	CheckpointFile  string `yaml:"checkpoint_file"`
	HistoryFile     string `yaml:"history_file"`
	ConvertTimezone *bool  `yaml:"convert_timezone"`
	RequestTimeout  string `yaml:"request_timeout"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`

	requestTimeout time.Duration
}

// RequestTimeoutDuration returns the parsed per-call timeout for source and
// sink I/O.
func (s *SyncConfig) RequestTimeoutDuration() time.Duration {
	if s.requestTimeout <= 0 {
		return 30 * time.Second
	}
	return s.requestTimeout
}

// NotifyConfig holds optional notification settings.
type NotifyConfig struct {
	Slack SlackConfig `yaml:"slack"`
}

// SlackConfig configures the Slack webhook notifier.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// ConvertTimezoneEnabled reports whether temporal values should be rendered
// in UTC+8 before epoch-millisecond encoding. Defaults to true.
func (s *SyncConfig) ConvertTimezoneEnabled() bool {
	return s.ConvertTimezone == nil || *s.ConvertTimezone
}

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, syncerr.Wrap(syncerr.KindConfig, fmt.Sprintf("reading config file %s", path), err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, syncerr.Wrap(syncerr.KindConfig, "parsing config file", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Oracle.Port == 0 {
		c.Oracle.Port = 1521
	}
	if c.Oracle.MaxConns <= 0 {
		c.Oracle.MaxConns = 4
	}
	if c.Feishu.TableNamePrefix == "" {
		c.Feishu.TableNamePrefix = "DataSync"
	}
	if c.Feishu.MaxRowsPerTable <= 0 {
		c.Feishu.MaxRowsPerTable = 20000
	}
	if c.Feishu.MaxRequestsPerSecond <= 0 {
		c.Feishu.MaxRequestsPerSecond = 50
	}
	if c.Sync.ReadBatchSize <= 0 {
		c.Sync.ReadBatchSize = 1000
	}
	if c.Sync.WriteBatchSize <= 0 || c.Sync.WriteBatchSize > maxWriteBatchSize {
		c.Sync.WriteBatchSize = maxWriteBatchSize
	}
	if c.Sync.CheckpointFile == "" {
		c.Sync.CheckpointFile = "sync_checkpoint.json"
	}
	if c.Sync.HistoryFile == "" {
		c.Sync.HistoryFile = "sync_history.db"
	}
	if c.Sync.RequestTimeout == "" {
		c.Sync.RequestTimeout = "30s"
	}
	if c.Sync.LogLevel == "" {
		c.Sync.LogLevel = "info"
	}
	if c.Sync.LogFormat == "" {
		c.Sync.LogFormat = "text"
	}
}

// Validate checks that every required setting is present.
func (c *Config) Validate() error {
	required := []struct {
		value, name string
	}{
		{c.Oracle.Host, "oracle.host"},
		{c.Oracle.ServiceName, "oracle.service_name"},
		{c.Oracle.User, "oracle.username"},
		{c.Oracle.Password, "oracle.password"},
		{c.Oracle.Table, "oracle.table_name"},
		{c.Oracle.SyncColumn, "oracle.sync_column"},
		{c.Oracle.PrimaryKey, "oracle.primary_key"},
		{c.Feishu.AppID, "feishu.app_id"},
		{c.Feishu.AppSecret, "feishu.app_secret"},
		{c.Feishu.AppToken, "feishu.app_token"},
	}
	for _, r := range required {
		if r.value == "" {
			return syncerr.Errorf(syncerr.KindConfig, "missing required setting %s", r.name)
		}
	}

	d, err := time.ParseDuration(c.Sync.RequestTimeout)
	if err != nil {
		return syncerr.Wrap(syncerr.KindConfig, "invalid sync.request_timeout", err)
	}
	c.Sync.requestTimeout = d
	return nil
}
