// Package config loads the mqttagent configuration.
//
// Configuration comes from an optional YAML file layered over defaults.
// Environment variables named MQTTAGENT_SECTION_KEY override both.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gonzalop/mqsession"
	"github.com/gonzalop/mqsession/internal/agent"
)

// Config is the root configuration of the agent.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Device    DeviceConfig    `yaml:"device"`
	Session   SessionConfig   `yaml:"session"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BrokerConfig describes how to reach the broker.
type BrokerConfig struct {
	URL      string    `yaml:"url"`
	ClientID string    `yaml:"client_id"`
	Username string    `yaml:"username"`
	Password string    `yaml:"password"`
	TLS      TLSConfig `yaml:"tls"`
}

// TLSConfig is used for tls://, mqtts:// and wss:// brokers.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"ca_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// DeviceConfig holds the topics the agent uses.
type DeviceConfig struct {
	// StatusTopic receives "1" on connect and is the will topic ("0").
	StatusTopic string `yaml:"status_topic"`
	// CommandTopic is subscribed on every connect.
	CommandTopic string `yaml:"command_topic"`
	CommandQoS   int    `yaml:"command_qos"`
	// Workers bounds concurrent command handlers.
	Workers int `yaml:"workers"`
}

// SessionConfig tunes the MQTT session. Durations are in seconds.
type SessionConfig struct {
	KeepAlive      int  `yaml:"keepalive"`
	ConnectTimeout int  `yaml:"connect_timeout"`
	CleanSession   bool `yaml:"clean_session"`
	RetryCount     int  `yaml:"retry_count"`
	RetryInterval  int  `yaml:"retry_interval"`
	QueueOffline   bool `yaml:"queue_offline"`
}

// ReconnectConfig is the backoff between connection attempts, in seconds.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// LoggingConfig selects the log level and writer ("console" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path uses the defaults.
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

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			URL:      "tcp://localhost:1883",
			ClientID: "mqttagent",
		},
		Device: DeviceConfig{
			StatusTopic:  "devices/mqttagent/status",
			CommandTopic: "devices/mqttagent/cmd/#",
			CommandQoS:   1,
			Workers:      4,
		},
		Session: SessionConfig{
			KeepAlive:      120,
			ConnectTimeout: 30,
			CleanSession:   true,
			RetryCount:     3,
			RetryInterval:  10,
		},
		Reconnect: ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// applyEnvOverrides applies MQTTAGENT_* variables.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"MQTTAGENT_BROKER_URL":           &cfg.Broker.URL,
		"MQTTAGENT_BROKER_CLIENT_ID":     &cfg.Broker.ClientID,
		"MQTTAGENT_BROKER_USERNAME":      &cfg.Broker.Username,
		"MQTTAGENT_BROKER_PASSWORD":      &cfg.Broker.Password,
		"MQTTAGENT_BROKER_TLS_CA_FILE":   &cfg.Broker.TLS.CAFile,
		"MQTTAGENT_DEVICE_STATUS_TOPIC":  &cfg.Device.StatusTopic,
		"MQTTAGENT_DEVICE_COMMAND_TOPIC": &cfg.Device.CommandTopic,
		"MQTTAGENT_LOGGING_LEVEL":        &cfg.Logging.Level,
		"MQTTAGENT_LOGGING_FORMAT":       &cfg.Logging.Format,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MQTTAGENT_SESSION_KEEPALIVE":       &cfg.Session.KeepAlive,
		"MQTTAGENT_SESSION_CONNECT_TIMEOUT": &cfg.Session.ConnectTimeout,
		"MQTTAGENT_SESSION_RETRY_COUNT":     &cfg.Session.RetryCount,
		"MQTTAGENT_SESSION_RETRY_INTERVAL":  &cfg.Session.RetryInterval,
		"MQTTAGENT_RECONNECT_INITIAL_DELAY": &cfg.Reconnect.InitialDelay,
		"MQTTAGENT_RECONNECT_MAX_DELAY":     &cfg.Reconnect.MaxDelay,
		"MQTTAGENT_DEVICE_WORKERS":          &cfg.Device.Workers,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"MQTTAGENT_BROKER_TLS_ENABLED":    &cfg.Broker.TLS.Enabled,
		"MQTTAGENT_SESSION_CLEAN_SESSION": &cfg.Session.CleanSession,
		"MQTTAGENT_SESSION_QUEUE_OFFLINE": &cfg.Session.QueueOffline,
	}
	for name, dst := range bools {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.URL == "" {
		errs = append(errs, "broker.url is required")
	}
	if c.Broker.Password != "" && c.Broker.Username == "" {
		errs = append(errs, "broker.password requires broker.username")
	}
	if err := mqsession.ValidateTopic(c.Device.StatusTopic); err != nil {
		errs = append(errs, fmt.Sprintf("device.status_topic: %v", err))
	}
	if err := mqsession.ValidateFilter(c.Device.CommandTopic); err != nil {
		errs = append(errs, fmt.Sprintf("device.command_topic: %v", err))
	}
	if c.Device.CommandQoS < 0 || c.Device.CommandQoS > 2 {
		errs = append(errs, "device.command_qos must be 0, 1, or 2")
	}
	if c.Device.Workers < 1 {
		errs = append(errs, "device.workers must be at least 1")
	}
	if c.Session.KeepAlive < 0 || c.Session.KeepAlive > 65535 {
		errs = append(errs, "session.keepalive must be between 0 and 65535")
	}
	if c.Session.RetryCount < 0 {
		errs = append(errs, "session.retry_count must not be negative")
	}
	if c.Session.RetryInterval < 1 {
		errs = append(errs, "session.retry_interval must be at least 1")
	}
	if c.Reconnect.InitialDelay < 1 || c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		errs = append(errs, "reconnect delays must satisfy 1 <= initial_delay <= max_delay")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, "logging.format must be console or json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// KeepAlive returns the keepalive interval as a Duration.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.Session.KeepAlive) * time.Second
}

// InitialDelay returns the first reconnect delay.
func (c *Config) InitialDelay() time.Duration {
	return time.Duration(c.Reconnect.InitialDelay) * time.Second
}

// MaxDelay returns the reconnect delay cap.
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Reconnect.MaxDelay) * time.Second
}

// SessionOptions converts the configuration to session options. The will
// message marks the device offline on the status topic.
func (c *Config) SessionOptions(logger *slog.Logger) ([]mqsession.Option, error) {
	opts := []mqsession.Option{
		mqsession.WithClientID(c.Broker.ClientID),
		mqsession.WithKeepAlive(c.KeepAlive()),
		mqsession.WithConnectTimeout(time.Duration(c.Session.ConnectTimeout) * time.Second),
		mqsession.WithCleanSession(c.Session.CleanSession),
		mqsession.WithRetry(c.Session.RetryCount, time.Duration(c.Session.RetryInterval)*time.Second),
		mqsession.WithWill(c.Device.StatusTopic, agent.OfflinePayload, mqsession.AtLeastOnce, false),
		// The agent subscribes on every Connected itself.
		mqsession.WithResubscribe(false),
		mqsession.WithLogger(logger),
	}
	if c.Broker.Username != "" {
		opts = append(opts, mqsession.WithCredentials(c.Broker.Username, c.Broker.Password))
	}
	if c.Session.QueueOffline {
		opts = append(opts, mqsession.WithOfflinePolicy(mqsession.OfflineQueue))
	}

	if c.Broker.TLS.Enabled {
		tlsConfig, err := c.tlsConfig()
		if err != nil {
			return nil, err
		}
		opts = append(opts, mqsession.WithTLS(tlsConfig))
	}
	return opts, nil
}

func (c *Config) tlsConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.Broker.TLS.InsecureSkipVerify,
	}
	if c.Broker.TLS.CAFile == "" {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(c.Broker.TLS.CAFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", c.Broker.TLS.CAFile)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
