package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validJWTSecret meets the 32-character minimum.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: "sqlite3"
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 8081
executor:
  timeout_seconds: 3
  handlers:
    led_control:
      command: "/usr/bin/python3"
      script: "/opt/led/led_control.py"
      env:
        pin: "LED_PIN"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 8081 {
		t.Errorf("API.Port = %d, want 8081", cfg.API.Port)
	}
	if got := cfg.GetExecutorTimeout().Seconds(); got != 3 {
		t.Errorf("GetExecutorTimeout() = %v, want 3", got)
	}
	led, ok := cfg.Executor.Handlers["led_control"]
	if !ok {
		t.Fatal("led_control handler missing")
	}
	if led.Script != "/opt/led/led_control.py" {
		t.Errorf("led_control.Script = %q", led.Script)
	}
	if cfg.Pairing.DefaultTTLSeconds != 600 {
		t.Errorf("Pairing.DefaultTTLSeconds = %d, want default 600", cfg.Pairing.DefaultTTLSeconds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: "postgres"
api:
  port: 8080
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every problem is reported at once.
	for _, want := range []string{"database.dsn", "security.jwt.secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid postgres",
			mutate: func(c *Config) {
				c.Database.Driver = "postgres"
				c.Database.DSN = "postgres://localhost/devremote?sslmode=disable"
			},
			wantErr: false,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: true,
		},
		{
			name:    "missing sqlite path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "invalid QoS only checked when enabled",
			mutate: func(c *Config) {
				c.MQTT.QoS = 3
			},
			wantErr: false,
		},
		{
			name: "invalid QoS",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "influx without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name:    "zero executor timeout",
			mutate:  func(c *Config) { c.Executor.TimeoutSeconds = 0 },
			wantErr: true,
		},
		{
			name: "handler without command",
			mutate: func(c *Config) {
				c.Executor.Handlers["relay"] = HandlerConfig{}
			},
			wantErr: true,
		},
		{
			name:    "pairing max below default",
			mutate:  func(c *Config) { c.Pairing.MaxTTLSeconds = 60 },
			wantErr: true,
		},
		{
			name:    "pairing digits too small",
			mutate:  func(c *Config) { c.Pairing.CodeDigits = 2 },
			wantErr: true,
		},
		{
			name:    "missing JWT secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: true,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("DEVREMOTE_DATABASE_DRIVER", "postgres")
	t.Setenv("DEVREMOTE_DATABASE_DSN", "postgres://db/devremote")
	t.Setenv("DEVREMOTE_API_PORT", "9090")
	t.Setenv("DEVREMOTE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("DEVREMOTE_MQTT_USERNAME", "testuser")
	t.Setenv("DEVREMOTE_MQTT_PASSWORD", "testpass")
	t.Setenv("DEVREMOTE_API_HOST", "192.168.1.1")
	t.Setenv("DEVREMOTE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("DEVREMOTE_EXECUTOR_LED_SCRIPT", "/srv/led.py")
	t.Setenv("DEVREMOTE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Database.Driver", cfg.Database.Driver, "postgres"},
		{"Database.DSN", cfg.Database.DSN, "postgres://db/devremote"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"led_control.Script", cfg.Executor.Handlers["led_control"].Script, "/srv/led.py"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Executor.Handlers["led_control"].Command != "python3" {
		t.Error("script override must keep the configured command")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("defaultConfig Database.Driver = %q, want sqlite3", cfg.Database.Driver)
	}
	if cfg.Executor.TimeoutSeconds != 10 {
		t.Errorf("defaultConfig Executor.TimeoutSeconds = %d, want 10", cfg.Executor.TimeoutSeconds)
	}
	if cfg.Pairing.CodeDigits != 6 {
		t.Errorf("defaultConfig Pairing.CodeDigits = %d, want 6", cfg.Pairing.CodeDigits)
	}
	if cfg.Security.JWT.CookieName != "token" {
		t.Errorf("defaultConfig JWT.CookieName = %q, want token", cfg.Security.JWT.CookieName)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
}

func TestDefaultConfig_ExecutorScriptShipped(t *testing.T) {
	// Paths in the defaults are relative to the repository root.
	root := filepath.Join("..", "..", "..")

	for key, h := range defaultConfig().Executor.Handlers {
		if h.Script == "" {
			continue
		}
		info, err := os.Stat(filepath.Join(root, h.Script))
		if err != nil {
			t.Errorf("handler %q script %q: %v", key, h.Script, err)
			continue
		}
		if info.IsDir() {
			t.Errorf("handler %q script %q is a directory", key, h.Script)
		}
	}
}
