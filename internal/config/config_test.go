package config

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gonzalop/mqsession"
	"github.com/gonzalop/mqsession/internal/agent"
	"github.com/gonzalop/mqsession/internal/packets"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mqttagent.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
broker:
  url: "tcp://broker.local:1883"
  client_id: "esp-01"
  username: "device"
  password: "secret"
device:
  status_topic: "devices/esp-01/status"
  command_topic: "devices/esp-01/cmd/#"
  command_qos: 2
session:
  keepalive: 30
  queue_offline: true
reconnect:
  initial_delay: 2
  max_delay: 60
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Broker.URL != "tcp://broker.local:1883" {
		t.Errorf("Broker.URL = %q", cfg.Broker.URL)
	}
	if cfg.Broker.ClientID != "esp-01" {
		t.Errorf("Broker.ClientID = %q", cfg.Broker.ClientID)
	}
	if cfg.Device.CommandQoS != 2 {
		t.Errorf("Device.CommandQoS = %d, want 2", cfg.Device.CommandQoS)
	}
	if cfg.KeepAlive() != 30*time.Second {
		t.Errorf("KeepAlive() = %v, want 30s", cfg.KeepAlive())
	}
	if !cfg.Session.QueueOffline {
		t.Error("Session.QueueOffline = false, want true")
	}
	if cfg.InitialDelay() != 2*time.Second || cfg.MaxDelay() != time.Minute {
		t.Errorf("reconnect delays = %v..%v", cfg.InitialDelay(), cfg.MaxDelay())
	}
	// Unset keys keep their defaults.
	if cfg.Session.RetryCount != 3 {
		t.Errorf("Session.RetryCount = %d, want default 3", cfg.Session.RetryCount)
	}
	if cfg.Device.Workers != 4 {
		t.Errorf("Device.Workers = %d, want default 4", cfg.Device.Workers)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.KeepAlive() != 120*time.Second {
		t.Errorf("KeepAlive() = %v, want 120s", cfg.KeepAlive())
	}
	if cfg.InitialDelay() != time.Second || cfg.MaxDelay() != 2*time.Minute {
		t.Errorf("reconnect delays = %v..%v, want 1s..2m", cfg.InitialDelay(), cfg.MaxDelay())
	}
	if cfg.Device.CommandQoS != 1 {
		t.Errorf("Device.CommandQoS = %d, want 1", cfg.Device.CommandQoS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/mqttagent.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
broker:
  url: ""
device:
  status_topic: "devices/+/status"
  command_qos: 3
reconnect:
  initial_delay: 10
  max_delay: 5
logging:
  format: "xml"
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"broker.url", "status_topic", "command_qos", "reconnect", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
broker:
  url: "tcp://from-file:1883"
`)
	t.Setenv("MQTTAGENT_BROKER_URL", "ws://from-env:8080/mqtt")
	t.Setenv("MQTTAGENT_BROKER_USERNAME", "env-user")
	t.Setenv("MQTTAGENT_SESSION_KEEPALIVE", "15")
	t.Setenv("MQTTAGENT_SESSION_CLEAN_SESSION", "false")
	t.Setenv("MQTTAGENT_LOGGING_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Broker.URL != "ws://from-env:8080/mqtt" {
		t.Errorf("Broker.URL = %q, want env value", cfg.Broker.URL)
	}
	if cfg.Broker.Username != "env-user" {
		t.Errorf("Broker.Username = %q", cfg.Broker.Username)
	}
	if cfg.Session.KeepAlive != 15 {
		t.Errorf("Session.KeepAlive = %d, want 15", cfg.Session.KeepAlive)
	}
	if cfg.Session.CleanSession {
		t.Error("Session.CleanSession = true, want false")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q", cfg.Logging.Format)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("MQTTAGENT_SESSION_RETRY_COUNT", "three")
	if _, err := Load(""); err == nil {
		t.Error("Load() expected error for non-numeric override")
	}
}

func TestLoad_InvalidCommandFilter(t *testing.T) {
	t.Setenv("MQTTAGENT_DEVICE_COMMAND_TOPIC", "devices/x/#/bad")
	_, err := Load("")
	if err == nil {
		t.Fatal("Load() accepted a filter the session would reject")
	}
	if !strings.Contains(err.Error(), "device.command_topic") {
		t.Errorf("error %q does not mention device.command_topic", err)
	}
}

func TestSessionOptions_Will(t *testing.T) {
	cfg := Default()
	opts, err := cfg.SessionOptions(slog.Default())
	if err != nil {
		t.Fatalf("SessionOptions() error = %v", err)
	}

	server, client := net.Pipe()
	defer server.Close()
	opts = append(opts, mqsession.WithDialer(mqsession.DialFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		return client, nil
	})))

	s, err := mqsession.New(cfg.Broker.URL, opts...)
	if err != nil {
		t.Fatalf("mqsession.New() error = %v", err)
	}
	defer s.Close()

	connected := make(chan error, 1)
	go func() { connected <- s.Connect(context.Background()) }()

	pkt, err := packets.ReadPacket(server, 0)
	if err != nil {
		t.Fatalf("reading CONNECT: %v", err)
	}
	if err := <-connected; err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	connect, ok := pkt.(*packets.ConnectPacket)
	if !ok {
		t.Fatalf("first packet is %s, want CONNECT", packets.Name(pkt.Type()))
	}
	if !connect.WillFlag || connect.WillTopic != cfg.Device.StatusTopic {
		t.Errorf("will topic = %q (flag %v), want %q", connect.WillTopic, connect.WillFlag, cfg.Device.StatusTopic)
	}
	if !bytes.Equal(connect.WillMessage, agent.OfflinePayload) {
		t.Errorf("will payload = %q, want %q", connect.WillMessage, agent.OfflinePayload)
	}
	if connect.WillQoS != 1 || connect.WillRetain {
		t.Errorf("will qos = %d retain = %v, want 1 and false", connect.WillQoS, connect.WillRetain)
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := Default()
	cfg.Broker.Username = "device"
	cfg.Broker.Password = "secret"
	cfg.Session.QueueOffline = true
	cfg.Broker.TLS.Enabled = true

	opts, err := cfg.SessionOptions(slog.Default())
	if err != nil {
		t.Fatalf("SessionOptions() error = %v", err)
	}

	s, err := mqsession.New(cfg.Broker.URL, opts...)
	if err != nil {
		t.Fatalf("mqsession.New() rejected the options: %v", err)
	}
	_ = s.Close()
}

func TestSessionOptions_BadCAFile(t *testing.T) {
	cfg := Default()
	cfg.Broker.TLS.Enabled = true
	cfg.Broker.TLS.CAFile = writeConfig(t, "not a certificate")

	if _, err := cfg.SessionOptions(slog.Default()); err == nil {
		t.Error("SessionOptions() expected error for a CA file without certificates")
	}

	cfg.Broker.TLS.CAFile = "/nonexistent/ca.pem"
	if _, err := cfg.SessionOptions(slog.Default()); err == nil {
		t.Error("SessionOptions() expected error for a missing CA file")
	}
}
