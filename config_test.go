package main

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, true},
		{"cert and key", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, false},
		{"port zero", func(c *Config) { c.port = 0 }, true},
		{"port too high", func(c *Config) { c.port = 70000 }, true},
		{"empty leaderboard", func(c *Config) { c.leaderboardLimit = 0 }, true},
		{"zero rate", func(c *Config) { c.rateLimit = 0 }, true},
		{"zero burst", func(c *Config) { c.rateBurst = 0 }, true},
		{"tiny idle timeout", func(c *Config) { c.idleTimeout = time.Millisecond }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("POWERBOX_PORT", "9090")
	t.Setenv("POWERBOX_TAP_GATE", "false")
	t.Setenv("POWERBOX_LEADERBOARD_LIMIT", "5")
	t.Setenv("POWERBOX_NAME_PREFIX", "P")

	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if cfg.port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.port)
	}
	if cfg.tapGate {
		t.Fatalf("tap gate still enabled")
	}

	opts := cfg.engineOptions()
	if opts.GatedTapping || opts.LeaderboardLimit != 5 || opts.NamePrefix != "P" || opts.DefaultName != "Anonymous" {
		t.Fatalf("engine options = %+v", opts)
	}
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags([]string{"--clear-on-end", "--rate-limit", "10"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if !cfg.tapGate || !cfg.clearOnEnd || cfg.rateLimit != 10 || cfg.port != 8080 {
		t.Fatalf("config = %+v", cfg)
	}
}
