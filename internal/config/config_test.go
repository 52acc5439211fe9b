package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if !reflect.DeepEqual(cfg.Mirrors, defaultMirrors) {
		t.Errorf("Mirrors = %v, want defaults", cfg.Mirrors)
	}
	if cfg.FetchTimeout != 2*time.Minute {
		t.Errorf("FetchTimeout = %v, want 2m", cfg.FetchTimeout)
	}
	if cfg.MinListSize != 1024 {
		t.Errorf("MinListSize = %d, want 1024", cfg.MinListSize)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GEOROUTE_MIRRORS", "https://a.example/dlc.dat, 'https://b.example/dlc.dat'")
	t.Setenv("GEOROUTE_CATEGORIES", "YOUTUBE,GOOGLE")
	t.Setenv("GEOROUTE_UPDATE_INTERVAL", "6h")
	t.Setenv("GEOROUTE_ALLOWED_CIDRS", "10.0.0.0/8, 192.168.1.5")
	t.Setenv("GEOROUTE_SETTINGS_FILE", "/etc/georoute/settings.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := []string{"https://a.example/dlc.dat", "https://b.example/dlc.dat"}; !reflect.DeepEqual(cfg.Mirrors, want) {
		t.Errorf("Mirrors = %v, want %v", cfg.Mirrors, want)
	}
	if want := []string{"YOUTUBE", "GOOGLE"}; !reflect.DeepEqual(cfg.Categories, want) {
		t.Errorf("Categories = %v, want %v", cfg.Categories, want)
	}
	if cfg.UpdateInterval != 6*time.Hour {
		t.Errorf("UpdateInterval = %v, want 6h", cfg.UpdateInterval)
	}
	if len(cfg.AllowedCIDRS) != 2 {
		t.Errorf("AllowedCIDRS = %v, want 2 entries", cfg.AllowedCIDRS)
	}
	if cfg.SettingsFile != "/etc/georoute/settings.yaml" {
		t.Errorf("SettingsFile = %q", cfg.SettingsFile)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("GEOROUTE_UPDATE_INTERVAL", "10s")
	t.Setenv("GEOROUTE_MIRRORS", "ftp://old.example/list")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail")
	}
	for _, want := range []string{"GEOROUTE_UPDATE_INTERVAL", "GEOROUTE_MIRRORS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Mirrors:        []string{"https://m.example/dlc.dat"},
			Categories:     []string{"YOUTUBE"},
			UpdateInterval: time.Hour,
			FetchTimeout:   time.Minute,
			RetryInitial:   time.Second,
			RetryMax:       time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no mirrors", mutate: func(c *Config) { c.Mirrors = nil }, wantErr: true},
		{name: "no categories", mutate: func(c *Config) { c.Categories = nil }, wantErr: true},
		{name: "interval too short", mutate: func(c *Config) { c.UpdateInterval = 59 * time.Second }, wantErr: true},
		{name: "interval at minimum", mutate: func(c *Config) { c.UpdateInterval = time.Minute }},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }, wantErr: true},
		{name: "retry max below initial", mutate: func(c *Config) { c.RetryMax = time.Millisecond }, wantErr: true},
		{
			name: "password required but missing",
			mutate: func(c *Config) {
				c.RedisPasswordRequired = true
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	c := Config{RedisUser: "admin", RedisPassword: "hunter2"}
	r := c.Redacted()
	if r.RedisPassword == "hunter2" || r.RedisUser == "admin" {
		t.Errorf("Redacted() leaked credentials: %+v", r)
	}
	if c.RedisPassword != "hunter2" {
		t.Error("Redacted() must not modify the original")
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{` a , "b",, 'c' `, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := splitAndTrim(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{name: "true value", key: "TEST_BOOL", value: "true", def: false, expected: true},
		{name: "false value", key: "TEST_BOOL_FALSE", value: "false", def: true, expected: false},
		{name: "invalid value uses default", key: "TEST_BOOL_INVALID", value: "invalid", def: true, expected: true},
		{name: "missing variable uses default", key: "TEST_BOOL_MISSING", def: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}
			if got := mustBool(tt.key, tt.def); got != tt.expected {
				t.Errorf("mustBool() = %v, want %v", got, tt.expected)
			}
		})
	}
}
