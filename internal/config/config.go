// Package config loads the node's YAML configuration file (its path comes
// from cmd/meshnode's -config flag) carrying mesh-node's own tunables:
// election timing, clock smoothing, replication pacing, storage paths.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/meshnode/meshnode/internal/logger"
)

var (
	APPNAME    = "meshnode"
	VERSION    = "undefined"
	BUILD_TIME = "undefined"
)

// ElectionConfig overrides the bully election timers
type ElectionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SlaveTimeout      time.Duration `yaml:"slave_timeout"`
	MasterTimeout     time.Duration `yaml:"master_timeout"`
	ElectionWait      time.Duration `yaml:"election_wait"`
	CoordinatorWait   time.Duration `yaml:"coordinator_wait"`
	AnnounceInterval  time.Duration `yaml:"announce_interval"`
}

// ClockConfig overrides the smoothing constants
type ClockConfig struct {
	// SyncInterval is not read by the node: the election Machine emits
	// TimeSync every 10s regardless of this value.
	SyncInterval     time.Duration `yaml:"sync_interval"`
	LatencyCompMs    int32         `yaml:"latency_comp_ms"`
	SmoothingAlpha   float64       `yaml:"smoothing_alpha"`
	SnapThresholdMs  float64       `yaml:"snap_threshold_ms"`
}

// ReplicationConfig overrides the anti-entropy pacing
type ReplicationConfig struct {
	ManifestInterval time.Duration `yaml:"manifest_interval"`
	ManifestPacing   time.Duration `yaml:"manifest_pacing"`
	PullInterval     time.Duration `yaml:"pull_interval"`
	RedundantRounds  int           `yaml:"redundant_rounds"`
	RoundGap         time.Duration `yaml:"round_gap"`
	FragmentPacing   time.Duration `yaml:"fragment_pacing"`
	QueryTimeout     time.Duration `yaml:"query_timeout"`
	RequestTTL       time.Duration `yaml:"request_ttl"`
}

type LoggerConfig struct {
	Dir      string `yaml:"dir"`
	Level    string `yaml:"level"`
	RotateBy string `yaml:"rotate_by"` // "", "time", or "size"
}

// Config is the node's persisted configuration file; cmd/meshnode reads
// it from /etc/meshnode/config.yaml unless -config names another path.
type Config struct {
	DeviceName  string            `yaml:"device_name"`
	Group       string            `yaml:"group"`
	Interface   string            `yaml:"interface"`
	BroadcastPort int             `yaml:"broadcast_port"`
	PixelCount  int               `yaml:"pixel_count"`
	StorageDir  string            `yaml:"storage_dir"`
	Logger      LoggerConfig      `yaml:"logger"`
	Election    ElectionConfig    `yaml:"election"`
	Clock       ClockConfig       `yaml:"clock"`
	Replication ReplicationConfig `yaml:"replication"`
}

// Defaults returns a Config carrying the stock protocol timing constants.
func Defaults() *Config {
	return &Config{
		DeviceName:    "meshnode",
		BroadcastPort: 7391,
		PixelCount:    60,
		StorageDir:    ".",
		Logger: LoggerConfig{
			Level: "info",
		},
		Election: ElectionConfig{
			HeartbeatInterval: 5 * time.Second,
			SlaveTimeout:      15 * time.Second,
			MasterTimeout:     2 * time.Second,
			ElectionWait:      300 * time.Millisecond,
			CoordinatorWait:   800 * time.Millisecond,
			AnnounceInterval:  5 * time.Second,
		},
		Clock: ClockConfig{
			SyncInterval:    10 * time.Second,
			LatencyCompMs:   15,
			SmoothingAlpha:  0.2,
			SnapThresholdMs: 500,
		},
		Replication: ReplicationConfig{
			ManifestInterval: 60 * time.Second,
			ManifestPacing:   100 * time.Millisecond,
			PullInterval:     500 * time.Millisecond,
			RedundantRounds:  3,
			RoundGap:         50 * time.Millisecond,
			FragmentPacing:   20 * time.Millisecond,
			QueryTimeout:     500 * time.Millisecond,
			RequestTTL:       30 * time.Second,
		},
	}
}

// Load reads the YAML file at path over Defaults, then configures the
// package-level logger as a side effect of loading config.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	defer logger.Sync()
	if cfg.Logger.RotateBy != "" {
		dir := cfg.Logger.Dir
		if dir == "" {
			dir = "."
		}
		logPath := dir + "/" + APPNAME + ".log"
		switch cfg.Logger.RotateBy {
		case "size":
			logger.ReplaceDefault(logger.New(logger.NewSizeRotated(logPath, 10, 5, 28), logger.InfoLevel))
		case "time":
			logger.ReplaceDefault(logger.New(logger.NewProductionRotateByTime(logPath), logger.InfoLevel))
		}
	}
	switch cfg.Logger.Level {
	case "debug":
		logger.SetLevel(logger.DebugLevel)
	case "warn":
		logger.SetLevel(logger.WarnLevel)
	case "error":
		logger.SetLevel(logger.ErrorLevel)
	default:
		logger.SetLevel(logger.InfoLevel)
	}

	return cfg, nil
}
