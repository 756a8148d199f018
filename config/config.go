package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Controller ControllerConfig  `toml:"controller"`
	Agents     map[string]string `toml:"agents"` // device ID -> agent address
	Etcd       EtcdConfig        `toml:"etcd"`
}

type ControllerConfig struct {
	BackupCount         int     `toml:"backup_count"`
	BackupPriorityDelta int     `toml:"backup_priority_delta"`
	DegradedErrorRatio  float64 `toml:"degraded_error_ratio"`
	DefaultPriority     int     `toml:"default_priority"`
	LoadBalancePaths    int     `toml:"load_balance_paths"`
	StatsPollSeconds    int     `toml:"stats_poll_seconds"`
	PublishSeconds      int     `toml:"publish_seconds"`
	SysReportSeconds    int     `toml:"sys_report_seconds"`
	AgentDialTimeoutSec int     `toml:"agent_dial_timeout_seconds"`
}

type EtcdConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoints      []string `toml:"endpoints"`
	DialTimeoutSec int      `toml:"dial_timeout_seconds"`
	Prefix         string   `toml:"prefix"`
}

// Load reads the TOML configuration and fills in defaults for anything the
// file leaves out.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every knob at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	cc := &c.Controller
	if cc.BackupCount <= 0 {
		cc.BackupCount = 3
	}
	if cc.BackupPriorityDelta <= 0 {
		cc.BackupPriorityDelta = 10
	}
	if cc.DegradedErrorRatio <= 0 {
		cc.DegradedErrorRatio = 0.01
	}
	if cc.DefaultPriority <= 0 {
		cc.DefaultPriority = 100
	}
	if cc.LoadBalancePaths <= 0 {
		cc.LoadBalancePaths = 3
	}
	if cc.StatsPollSeconds <= 0 {
		cc.StatsPollSeconds = 10
	}
	if cc.PublishSeconds <= 0 {
		cc.PublishSeconds = 15
	}
	if cc.SysReportSeconds <= 0 {
		cc.SysReportSeconds = 60
	}
	if cc.AgentDialTimeoutSec <= 0 {
		cc.AgentDialTimeoutSec = 5
	}

	if c.Etcd.Enabled {
		if len(c.Etcd.Endpoints) == 0 {
			log.Warningf("etcd enabled without endpoints, using localhost:2379")
			c.Etcd.Endpoints = []string{"localhost:2379"}
		}
		if c.Etcd.DialTimeoutSec <= 0 {
			c.Etcd.DialTimeoutSec = 5
		}
		if c.Etcd.Prefix == "" {
			c.Etcd.Prefix = "/sdn/flows/"
		}
	}
}

func (c *Config) AgentDialTimeout() time.Duration {
	return time.Duration(c.Controller.AgentDialTimeoutSec) * time.Second
}

func (c *Config) EtcdDialTimeout() time.Duration {
	return time.Duration(c.Etcd.DialTimeoutSec) * time.Second
}
