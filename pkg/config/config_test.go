package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
environment: test
server:
  port: 8081
engine:
  tick_interval: 2s
  max_multiplier: 50.0
  learning_rate: 0.1
  weight_step: 0.05
  weight_floor: 0.01
  detection:
    hourly: true
categories:
  - { name: low, min: 1.0, max: 2.0, color: grey }
  - { name: medium, min: 2.0, max: 50.0, color: green }
rules:
  default:
    bias: 2.0
    volatility: 0.5
    weights: { low: 0.7, medium: 0.3 }
  hourly:
    "14": { bias: 3.0, volatility: 0.8, weights: { low: 0.4, medium: 0.6 } }
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "test" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Engine.TickInterval != 2*time.Second {
		t.Fatalf("tick_interval = %v", cfg.Engine.TickInterval)
	}
	if !cfg.Engine.Detection.Hourly || cfg.Engine.Detection.Quarterly {
		t.Fatalf("detection = %+v", cfg.Engine.Detection)
	}
	if len(cfg.Categories) != 2 {
		t.Fatalf("categories = %d", len(cfg.Categories))
	}
	e, ok := cfg.Rules.Hourly["14"]
	if !ok || e.Bias != 3.0 {
		t.Fatalf("hourly override = %+v", e)
	}
	if cfg.Rules.Default.Weights["low"] != 0.7 {
		t.Fatalf("default weights = %v", cfg.Rules.Default.Weights)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		edit func(string) string
	}{
		{"missing environment", func(s string) string {
			return "environment: \"\"\n" + s[len("environment: test\n"):]
		}},
		{"bad learning rate", func(s string) string {
			return replace(s, "learning_rate: 0.1", "learning_rate: 1.5")
		}},
		{"zero tick", func(s string) string {
			return replace(s, "tick_interval: 2s", "tick_interval: 0s")
		}},
		{"max multiplier too small", func(s string) string {
			return replace(s, "max_multiplier: 50.0", "max_multiplier: 1.0")
		}},
		{"no detection granularity", func(s string) string {
			return replace(s, "hourly: true", "hourly: false")
		}},
		{"no categories", func(s string) string {
			return replace(s, "categories:\n  - { name: low, min: 1.0, max: 2.0, color: grey }\n  - { name: medium, min: 2.0, max: 50.0, color: green }", "categories: []")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.edit(validYAML))); err == nil {
				t.Fatalf("config accepted")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("ENGINE_SEED", "42")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "b1:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Engine.Seed != 42 {
		t.Fatalf("seed = %d", cfg.Engine.Seed)
	}
}

func replace(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
