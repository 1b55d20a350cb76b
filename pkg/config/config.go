// Package config loads the door lock node configuration.
//
// Configuration is read from a YAML file laid over Default, then selected
// fields are overridden from the environment:
//
//	DOORLOCK_NODE_ID       node.node_id
//	DOORLOCK_LISTEN        node.listen
//	DOORLOCK_STORAGE_PATH  storage.path
//	DOORLOCK_MQTT_BROKER   lifeline.mqtt.broker (and enables the mirror)
//	DOORLOCK_LOG_LEVEL     logging.level
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the complete node configuration.
type Config struct {
	Node         NodeConfig         `yaml:"node"`
	Storage      StorageConfig      `yaml:"storage"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Learn        LearnConfig        `yaml:"learn"`
	Lifeline     LifelineConfig     `yaml:"lifeline"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// NodeConfig identifies the node on the network.
type NodeConfig struct {
	ID     uint16 `yaml:"node_id"`
	Listen string `yaml:"listen"`
	// Peers maps node IDs to "host:port" addresses known up front.
	Peers map[uint16]string `yaml:"peers"`
}

// StorageConfig selects the non-volatile object store.
type StorageConfig struct {
	Driver      string        `yaml:"driver"`
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// LearnConfig configures Credential Learn.
type LearnConfig struct {
	// DefaultTimeout applies when neither the request nor the credential type names one.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// LifelineConfig configures the lifeline group and its MQTT mirror.
type LifelineConfig struct {
	Members    []uint16   `yaml:"members"`
	MaxMembers int        `yaml:"max_members"`
	MQTT       MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the lifeline mirror connection.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// DiscoveryConfig configures mDNS advertisement.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Interfaces restricts advertisement to the named interfaces; empty means all.
	Interfaces []string `yaml:"interfaces"`
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result. An empty path loads Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration of an in-memory PIN/RFID/fingerprint lock.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID:     1,
			Listen: ":4123",
		},
		Storage: StorageConfig{
			Driver:      DriverMemory,
			Path:        "./data/doorlock.db",
			BusyTimeout: 5 * time.Second,
		},
		Capabilities: DefaultCapabilities(),
		Learn: LearnConfig{
			DefaultTimeout: 20 * time.Second,
		},
		Lifeline: LifelineConfig{
			MaxMembers: 5,
			MQTT: MQTTConfig{
				Broker:      "tcp://127.0.0.1:1883",
				TopicPrefix: "doorlock",
				QoS:         1,
			},
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DOORLOCK_NODE_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("DOORLOCK_NODE_ID: %w", err)
		}
		cfg.Node.ID = uint16(id)
	}
	if v := os.Getenv("DOORLOCK_LISTEN"); v != "" {
		cfg.Node.Listen = v
	}
	if v := os.Getenv("DOORLOCK_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("DOORLOCK_MQTT_BROKER"); v != "" {
		cfg.Lifeline.MQTT.Broker = v
		cfg.Lifeline.MQTT.Enabled = true
	}
	if v := os.Getenv("DOORLOCK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Node.ID == 0 || c.Node.ID == 0xFFFF {
		errs = append(errs, "node.node_id must be between 1 and 65534")
	}
	if c.Node.Listen == "" {
		errs = append(errs, "node.listen is required")
	}
	for id := range c.Node.Peers {
		if id == 0 {
			errs = append(errs, "node.peers must not contain node 0")
		}
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q must be memory or sqlite", c.Storage.Driver))
	}

	if _, err := c.Capabilities.Build(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Learn.DefaultTimeout < 0 {
		errs = append(errs, "learn.default_timeout must not be negative")
	}

	if c.Lifeline.MaxMembers < 0 {
		errs = append(errs, "lifeline.max_members must not be negative")
	}
	if c.Lifeline.MaxMembers > 0 && len(c.Lifeline.Members) > c.Lifeline.MaxMembers {
		errs = append(errs, "lifeline.members exceeds lifeline.max_members")
	}
	if c.Lifeline.MQTT.Enabled && c.Lifeline.MQTT.Broker == "" {
		errs = append(errs, "lifeline.mqtt.broker is required when the mirror is enabled")
	}
	if c.Lifeline.MQTT.QoS < 0 || c.Lifeline.MQTT.QoS > 2 {
		errs = append(errs, "lifeline.mqtt.qos must be 0, 1, or 2")
	}

	if err := c.Logging.validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
