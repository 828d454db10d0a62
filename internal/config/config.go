package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the mcsched server.
type ServerConfig struct {
	Addr      string          `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string          `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string          `yaml:"log_format"` // Log format: text, json
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
}

// SchedulerConfig tunes the matching loop.
type SchedulerConfig struct {
	Interval      time.Duration `yaml:"interval"`       // Time between matching passes
	WorkerTimeout time.Duration `yaml:"worker_timeout"` // Heartbeat age after which a worker becomes UNKNOWN
}

// Snapshot backends.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// SnapshotConfig selects where queue and history snapshots are persisted.
// Backends lists one or more of "file", "sqlite", "s3"; several backends
// are written together and read back in order.
type SnapshotConfig struct {
	Backends []string `yaml:"backends"`
	Path     string   `yaml:"path"`     // XML file for the file backend
	DBPath   string   `yaml:"db_path"`  // SQLite database for the sqlite backend
	Keep     int      `yaml:"keep"`     // Snapshots retained by the sqlite backend
	Bucket   string   `yaml:"bucket"`   // S3 bucket
	Key      string   `yaml:"key"`      // S3 object key
	Region   string   `yaml:"region"`   // S3 region, empty for the SDK default
	Autosave bool     `yaml:"autosave"` // Save after every pass that changed state
	Restore  bool     `yaml:"restore"`  // Load the latest snapshot at startup
}

// Enabled reports whether any snapshot backend is configured.
func (c SnapshotConfig) Enabled() bool {
	for _, b := range c.Backends {
		if b != BackendNone && b != "" {
			return true
		}
	}
	return false
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Scheduler: SchedulerConfig{
			Interval:      10 * time.Second,
			WorkerTimeout: 30 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Backends: []string{BackendFile},
			Path:     "mcsched-snapshot.xml",
			DBPath:   "mcsched.db",
			Keep:     10,
			Key:      "mcsched/snapshot.xml",
			Restore:  true,
		},
	}
}

// LoadServerConfig reads a YAML file over the defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and backend names.
func (c ServerConfig) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.WorkerTimeout <= 0 {
		return fmt.Errorf("scheduler.worker_timeout must be positive, got %s", c.Scheduler.WorkerTimeout)
	}
	for _, b := range c.Snapshot.Backends {
		switch b {
		case BackendNone, BackendFile, BackendSQLite:
		case BackendS3:
			if c.Snapshot.Bucket == "" {
				return fmt.Errorf("snapshot.bucket is required for the s3 backend")
			}
		default:
			return fmt.Errorf("unknown snapshot backend %q", b)
		}
	}
	return nil
}

// WorkerConfig holds configuration for a worker agent.
type WorkerConfig struct {
	ServerURL         string            `yaml:"server_url"`
	Name              string            `yaml:"name"`
	Address           string            `yaml:"address"`
	PollInterval      time.Duration     `yaml:"poll_interval"`
	HeartbeatInterval time.Duration     `yaml:"heartbeat_interval"`
	WorkDir           string            `yaml:"work_dir"`
	Chains            []ChainCommand    `yaml:"chains"`
	Env               map[string]string `yaml:"env"`
	LogLevel          string            `yaml:"log_level"`
	LogFormat         string            `yaml:"log_format"`
}

// ChainCommand binds a model chain the worker advertises to the command
// that runs it.
type ChainCommand struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Command []string `yaml:"command"`
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	host, _ := os.Hostname()
	return WorkerConfig{
		ServerURL:         "http://localhost:8080",
		Name:              host,
		Address:           host,
		PollInterval:      5 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// LoadWorkerConfig reads a YAML file over the defaults.
func LoadWorkerConfig(path string) (WorkerConfig, error) {
	cfg := DefaultWorkerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	for i, c := range cfg.Chains {
		if c.Name == "" || c.Version == "" {
			return cfg, fmt.Errorf("config %s: chains[%d] needs name and version", path, i)
		}
		if len(c.Command) == 0 {
			return cfg, fmt.Errorf("config %s: chains[%d] (%s) has no command", path, i, c.Name)
		}
	}
	return cfg, nil
}
