package model

import (
	"errors"
	"testing"
	"time"
)

func TestWithDefaultsFillsHandBuiltConfig(t *testing.T) {
	cfg := TunnelConfig{Port: 8080}.WithDefaults()
	if cfg.Timeout != DefaultTimeout || cfg.GracePeriod != DefaultGracePeriod {
		t.Errorf("timeout = %v, grace = %v, want defaults", cfg.Timeout, cfg.GracePeriod)
	}
	if cfg.BindAddr != DefaultBindAddr || cfg.Protocol != DefaultProtocol || cfg.CloudflaredVersion != DefaultCloudflaredVersion {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestWithDefaultsKeepsExplicitZeroDurations(t *testing.T) {
	cfg, err := NewTunnelConfig(8080, WithTimeout(0), WithGracePeriod(0))
	if err != nil {
		t.Fatalf("NewTunnelConfig: %v", err)
	}
	cfg = cfg.WithDefaults()
	if cfg.Timeout != 0 {
		t.Errorf("timeout = %v, want 0", cfg.Timeout)
	}
	if cfg.GracePeriod != 0 {
		t.Errorf("grace period = %v, want 0", cfg.GracePeriod)
	}

	cfg, err = NewTunnelConfig(8080, WithTimeout(time.Minute))
	if err != nil {
		t.Fatalf("NewTunnelConfig: %v", err)
	}
	if cfg = cfg.WithDefaults(); cfg.Timeout != time.Minute || cfg.GracePeriod != DefaultGracePeriod {
		t.Errorf("timeout = %v, grace = %v", cfg.Timeout, cfg.GracePeriod)
	}
}

func TestNewTunnelConfigRejectsNegativeDurations(t *testing.T) {
	if _, err := NewTunnelConfig(8080, WithGracePeriod(-time.Second)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want invalid config", err)
	}
}

func TestDaemonArgs(t *testing.T) {
	cfg, err := NewTunnelConfig(3000, WithBindAddr("127.0.0.1"), WithExtraArgs("--loglevel", "debug"))
	if err != nil {
		t.Fatalf("NewTunnelConfig: %v", err)
	}
	got := cfg.DaemonArgs()
	want := []string{"tunnel", "--no-autoupdate", "--loglevel", "debug", "--url", "http://127.0.0.1:3000"}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
}
