package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
environment: test
kafka:
  brokers: ["localhost:9092"]
  outcomes_topic: outcomes
clickhouse:
  host: localhost
  database: incluscore
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Scoring.MinScore != 300 || cfg.Scoring.MaxScore != 900 {
		t.Fatalf("unexpected scale %d-%d", cfg.Scoring.MinScore, cfg.Scoring.MaxScore)
	}
	if cfg.Scoring.LowRiskCutoff != 0.65 || cfg.Scoring.MediumRiskCutoff != 0.45 {
		t.Fatalf("unexpected cutoffs %v %v", cfg.Scoring.LowRiskCutoff, cfg.Scoring.MediumRiskCutoff)
	}
	if cfg.Model.Eta0 != 0.01 || cfg.Model.RetrainThreshold != 25 {
		t.Fatalf("unexpected model defaults %v %v", cfg.Model.Eta0, cfg.Model.RetrainThreshold)
	}
}

func TestLoadRejectsInvalidScale(t *testing.T) {
	body := minimalConfig + `
scoring:
  min_score: 900
  max_score: 300
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsMissingBrokers(t *testing.T) {
	body := `
environment: test
clickhouse:
  host: localhost
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CLICKHOUSE_HOST", "ch-prod")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "k1:9092" {
		t.Fatalf("broker override not applied: %v", cfg.Kafka.Brokers)
	}
	if cfg.ClickHouse.Host != "ch-prod" {
		t.Fatalf("clickhouse override not applied: %v", cfg.ClickHouse.Host)
	}
}
