// Package config handles airocat configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/airocat/internal/bme680"
	"github.com/sweeney/airocat/internal/bsec"
	"github.com/sweeney/airocat/internal/ccs811"
	"github.com/sweeney/airocat/internal/gpio"
	"github.com/sweeney/airocat/internal/i2cbus"
	"github.com/sweeney/airocat/internal/mqtt"
	"github.com/sweeney/airocat/internal/sensor"
)

// DefaultSearchPaths returns the config file search order.
// Then: ./airocat.yaml, ~/.config/airocat/airocat.yaml, /etc/airocat/airocat.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"airocat.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "airocat", "airocat.yaml"))
	}

	paths = append(paths, "/etc/airocat/airocat.yaml")
	return paths
}

// ErrNotFound is returned by FindConfig when no file exists on the search path.
var ErrNotFound = errors.New("no config file found")

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise it returns the first of DefaultSearchPaths that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNotFound, DefaultSearchPaths())
}

// Config holds all airocat configuration.
type Config struct {
	Poll       time.Duration   `yaml:"poll"`
	Heartbeat  time.Duration   `yaml:"heartbeat"`
	HTTP       string          `yaml:"http"`
	LogLevel   string          `yaml:"log_level"`
	SetupRetry time.Duration   `yaml:"setup_retry"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	Discovery  DiscoveryConfig `yaml:"discovery"`
	I2C        I2CConfig       `yaml:"i2c"`
	BME680     BME680Config    `yaml:"bme680"`
	CCS811     CCS811Config    `yaml:"ccs811"`
}

// MQTTConfig defines the broker connection.
type MQTTConfig struct {
	Broker       string        `yaml:"broker"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	ClientID     string        `yaml:"client_id"` // empty derives one from the PID
	BaseTopic    string        `yaml:"base_topic"`
	Retain       bool          `yaml:"retain"`
	ConnectRetry time.Duration `yaml:"connect_retry"`
}

// DiscoveryConfig defines Home Assistant discovery.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
	Node    string `yaml:"node"`
}

// I2CConfig selects the bus both sensors share.
type I2CConfig struct {
	Device string `yaml:"device"`
}

// BME680Config configures the climate sensor.
type BME680Config struct {
	Address              int           `yaml:"address"`
	PublishInterval      time.Duration `yaml:"publish_interval"`
	StabilizationTimeout time.Duration `yaml:"stabilization_timeout"` // 0 waits forever
	Persist              bool          `yaml:"persist"`
	StateFile            string        `yaml:"state_file"`
	StateSaveInterval    time.Duration `yaml:"state_save_interval"`
	InitialStabilization time.Duration `yaml:"initial_stabilization"`
	PowerOnRunIn         time.Duration `yaml:"power_on_run_in"`
}

// CCS811Config configures the gas sensor.
type CCS811Config struct {
	Address         int           `yaml:"address"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	WakePin         int           `yaml:"wake_pin"` // negative leaves nWAKE unmanaged
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Poll:       2 * time.Second,
		Heartbeat:  15 * time.Minute,
		HTTP:       ":80",
		LogLevel:   "info",
		SetupRetry: time.Second,
		MQTT: MQTTConfig{
			Broker:       "tcp://192.168.1.200:1883",
			BaseTopic:    mqtt.DefaultBaseTopic,
			ConnectRetry: 5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Prefix:  mqtt.DefaultDiscoveryPrefix,
			Node:    "airocat",
		},
		I2C: I2CConfig{Device: i2cbus.DefaultDevice},
		BME680: BME680Config{
			Address:              bme680.AddressHigh,
			PublishInterval:      sensor.DefaultClimatePublishInterval,
			Persist:              true,
			StateFile:            "/var/lib/airocat/bsec.state",
			StateSaveInterval:    sensor.DefaultStateSaveInterval,
			InitialStabilization: bsec.DefaultInitialStabilization,
			PowerOnRunIn:         bsec.DefaultPowerOnRunIn,
		},
		CCS811: CCS811Config{
			Address:         ccs811.AddressLow,
			PublishInterval: sensor.DefaultGasPublishInterval,
			WakePin:         gpio.PinWake,
		},
	}
}

// Load reads configuration from a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("poll must be positive, got %v", c.Poll)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat)
	}
	if c.SetupRetry <= 0 {
		return fmt.Errorf("setup_retry must be positive, got %v", c.SetupRetry)
	}
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.MQTT.BaseTopic == "" {
		return errors.New("mqtt.base_topic is required")
	}
	if c.Discovery.Enabled && (c.Discovery.Prefix == "" || c.Discovery.Node == "") {
		return errors.New("discovery.prefix and discovery.node are required when discovery is enabled")
	}
	if c.I2C.Device == "" {
		return errors.New("i2c.device is required")
	}
	if err := validAddress("bme680", c.BME680.Address); err != nil {
		return err
	}
	if err := validAddress("ccs811", c.CCS811.Address); err != nil {
		return err
	}
	if c.BME680.PublishInterval < 0 || c.CCS811.PublishInterval < 0 {
		return errors.New("publish intervals must not be negative")
	}
	if c.BME680.StabilizationTimeout < 0 {
		return fmt.Errorf("bme680.stabilization_timeout must not be negative, got %v", c.BME680.StabilizationTimeout)
	}
	if c.BME680.Persist && c.BME680.StateFile == "" {
		return errors.New("bme680.state_file is required when persist is set")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

func validAddress(name string, addr int) error {
	if addr < 0x03 || addr > 0x77 {
		return fmt.Errorf("%s.address %#x is outside the 7-bit range", name, addr)
	}
	return nil
}

// Level returns the parsed log level, or info when it does not parse.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
