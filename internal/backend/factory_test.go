package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bankfees/internal/config"
	applog "bankfees/internal/log"
)

func TestCreateMemoryBackendWithCache(t *testing.T) {
	dir := t.TempDir()
	seed := `{"success":true,"data":[{"id":"city","name":"City Bank","type":"Private Commercial Bank","accountTypes":[{"type":"Savings","accountMaintenanceFee":500}]}]}`
	if err := os.WriteFile(filepath.Join(dir, "seed_banks.json"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFactory(applog.Discard(), nil)
	res, err := f.CreateBackend(context.Background(), Config{
		Type:          MemoryBackend,
		DataDirectory: dir,
		CacheTTL:      time.Minute,
		CacheSize:     8,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if res.Cache == nil || res.Manager == nil {
		t.Fatal("expected the source to be cached")
	}
	banks, err := res.Source.ListBanks(context.Background())
	if err != nil || len(banks) != 1 || banks[0].ID != "city" {
		t.Fatalf("unexpected banks %+v err=%v", banks, err)
	}
}

func TestCreateBackendWithoutCache(t *testing.T) {
	f := NewFactory(applog.Discard(), nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir(), DisableCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Cache != nil || res.Cleanup != nil {
		t.Fatalf("uncached memory backend needs no cleanup: %+v", res)
	}
	banks, err := res.Source.ListBanks(context.Background())
	if err != nil || len(banks) == 0 {
		t.Fatalf("expected the built-in catalog, got %d banks err=%v", len(banks), err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	f := NewFactory(applog.Discard(), nil)
	res, err := f.CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "mirror.db"),
		DisableCache: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Cleanup()

	banks, err := res.Source.ListBanks(context.Background())
	if err != nil || len(banks) != 0 {
		t.Fatalf("fresh mirror should be empty, got %d err=%v", len(banks), err)
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	f := NewFactory(applog.Discard(), nil)
	cases := []Config{
		{Type: "mongo"},
		{Type: SQLiteBackend},
		{Type: PostgresBackend},
		{Type: RemoteBackend},
		{Type: SheetsBackend},
		{Type: RemoteBackend, RemoteURL: "ftp://example.com"},
	}
	for _, c := range cases {
		if _, err := f.CreateBackend(context.Background(), c); err == nil {
			t.Errorf("%+v: expected error", c)
		}
	}
}

func TestSyncSourceConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:  "sqlite",
		SyncSource:   "remote",
		RemoteAPIURL: "https://banks.example.com",
		CacheSize:    64,
	}
	cfg, err := SyncSourceConfig(app)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != RemoteBackend || !cfg.DisableCache || cfg.RemoteURL != app.RemoteAPIURL {
		t.Fatalf("unexpected sync config %+v", cfg)
	}

	app.SyncSource = "sqlite"
	if _, err := SyncSourceConfig(app); err == nil {
		t.Fatal("the mirror cannot sync from itself")
	}

	api, err := FromAppConfig(app)
	if err != nil || api.Type != SQLiteBackend || api.DisableCache {
		t.Fatalf("unexpected api config %+v err=%v", api, err)
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
