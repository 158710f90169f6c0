package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/kikaihonyaku/cocosumo-sub004/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.DefaultLimit != 50 || cfg.Search.FuzzyThreshold != 0.8 || cfg.Search.BoostExact != 2 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	if cfg.History.MaxItems != 20 {
		t.Errorf("history default = %d, want 20", cfg.History.MaxItems)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled || cfg.Postgres.Enabled {
		t.Error("external services should be disabled by default")
	}
}

func TestLoad_YAMLCollections(t *testing.T) {
	path := writeConfig(t, `
search:
  defaultLimit: 20
  fuzzy: true
collections:
  - name: buildings
    table: buildings
    fields: [name, address, "owner.name"]
    weights:
      name: 3
    removeStopWords: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.DefaultLimit != 20 || !cfg.Search.Fuzzy {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Search.MaxResults != 200 {
		t.Errorf("unset fields should keep defaults, MaxResults = %d", cfg.Search.MaxResults)
	}
	col, ok := cfg.Collection("buildings")
	if !ok {
		t.Fatal("collection buildings missing")
	}
	if len(col.Fields) != 3 || col.Weights["name"] != 3 || !col.RemoveStopWords {
		t.Errorf("collection = %+v", col)
	}
	if _, ok := cfg.Collection("rooms"); ok {
		t.Error("unexpected collection rooms")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SEARCH_SERVER_PORT", "9999")
	t.Setenv("SEARCH_REDIS_ENABLED", "true")
	t.Setenv("SEARCH_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SEARCH_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 || !cfg.Redis.Enabled || cfg.Logging.Level != "debug" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative limit", "search:\n  defaultLimit: -1\n"},
		{"limit above max", "search:\n  defaultLimit: 500\n  maxResults: 100\n"},
		{"fuzzy threshold out of range", "search:\n  fuzzyThreshold: 1.5\n"},
		{"zero boost", "search:\n  boostExact: 0\n"},
		{"no fields", "collections:\n  - name: rooms\n"},
		{"duplicate collection", "collections:\n  - name: rooms\n    fields: [name]\n  - name: rooms\n    fields: [name]\n"},
		{"negative weight", "collections:\n  - name: rooms\n    fields: [name]\n    weights: {name: -2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, apperrors.ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	want := "host=db port=5433 user=u password=p dbname=d sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoad_DevelopmentConfig(t *testing.T) {
	cfg, err := Load("../../configs/development.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rooms, ok := cfg.Collection("rooms")
	if !ok {
		t.Fatal("rooms collection missing")
	}
	if rooms.File == "" || rooms.Weights["building.name"] != 2 {
		t.Errorf("rooms = %+v", rooms)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("shutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
}

func TestValidate_TableAndFileExclusive(t *testing.T) {
	cfg := defaultConfig()
	cfg.Collections = []CollectionConfig{{Name: "rooms", Table: "rooms", File: "rooms.json", Fields: []string{"name"}}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when both table and file are set")
	}
}
