// Package config loads observer daemon settings from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ryandielhenn/zephyrfd/pkg/detector"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListenAddr      = ":8080"
	DefaultPrefix          = "/zephyrfd"
	DefaultLeaseTTL        = 10
	DefaultAlgorithm       = detector.AlgorithmBertier
	DefaultInitialTimeout  = 5 * time.Second
	DefaultProbeInterval   = 500 * time.Millisecond
	DefaultProbeTimeout    = time.Second
	DefaultMonitorReplicas = 2
	DefaultVNodes          = 128
)

type Config struct {
	SelfID        string   `yaml:"self_id"`
	ListenAddr    string   `yaml:"listen_addr"`
	AdvertiseAddr string   `yaml:"advertise_addr"`
	EtcdEndpoints []string `yaml:"etcd_endpoints"`
	// Prefix is the etcd key prefix shared by one deployment.
	Prefix   string `yaml:"prefix"`
	LeaseTTL int64  `yaml:"lease_ttl"`
	LogLevel string `yaml:"log_level"`

	Detector DetectorConfig `yaml:"detector"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// DetectorConfig selects the failure detector. Params are passed verbatim to
// detector.New, so values stay strings: gamma, beta, phi, moderationstep,
// alpha, threshold, minwindowsize.
type DetectorConfig struct {
	Algorithm string            `yaml:"algorithm"`
	Params    map[string]string `yaml:"params"`
}

type MonitorConfig struct {
	InitialTimeout time.Duration `yaml:"initial_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	DeadAfter      time.Duration `yaml:"dead_after"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	// Replicas is how many observers monitor each entity.
	Replicas int `yaml:"replicas"`
	VNodes   int `yaml:"vnodes"`
}

// Load reads path (skipped when empty), fills defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	c.Prefix = strings.TrimSuffix(c.Prefix, "/")
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Detector.Algorithm == "" {
		c.Detector.Algorithm = DefaultAlgorithm
	}
	if c.Detector.Params == nil {
		c.Detector.Params = map[string]string{}
	}
	m := &c.Monitor
	if m.InitialTimeout == 0 {
		m.InitialTimeout = DefaultInitialTimeout
	}
	if m.ProbeInterval == 0 {
		m.ProbeInterval = DefaultProbeInterval
	}
	if m.ProbeTimeout == 0 {
		m.ProbeTimeout = DefaultProbeTimeout
	}
	if m.Replicas == 0 {
		m.Replicas = DefaultMonitorReplicas
	}
	if m.VNodes == 0 {
		m.VNodes = DefaultVNodes
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("SELF_ID"); v != "" {
		c.SelfID = v
	}
	if v := getenv("SELF_ADDR"); v != "" {
		c.AdvertiseAddr = v
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := getenv("ETCD_ENDPOINTS"); v != "" {
		c.EtcdEndpoints = splitList(v)
	}
	if v := getenv("FD_ALGORITHM"); v != "" {
		c.Detector.Algorithm = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("MONITOR_REPLICAS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MONITOR_REPLICAS: %w", err)
		}
		c.Monitor.Replicas = n
	}
	if c.AdvertiseAddr == "" {
		c.AdvertiseAddr = c.ListenAddr
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.SelfID == "" {
		errs = append(errs, errors.New("self_id is required"))
	}
	if c.Detector.Algorithm == "" {
		errs = append(errs, errors.New("detector.algorithm is required"))
	}
	if c.Monitor.InitialTimeout <= 0 {
		errs = append(errs, errors.New("monitor.initial_timeout must be positive"))
	}
	if c.Monitor.ProbeInterval <= 0 {
		errs = append(errs, errors.New("monitor.probe_interval must be positive"))
	}
	if c.Monitor.DeadAfter < 0 {
		errs = append(errs, errors.New("monitor.dead_after must not be negative"))
	}
	if c.Monitor.Replicas < 1 {
		errs = append(errs, errors.New("monitor.replicas must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
