package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/lantern/internal/log"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
)

// staticProvider serves a configuration built in the test
type staticProvider struct {
	cfg *config.ConfigData
}

func (p *staticProvider) LoadConfig() (*config.ConfigData, error) { return p.cfg, nil }

func (p *staticProvider) GetReaders() ([]config.ReaderData, error) { return p.cfg.Readers, nil }

func (p *staticProvider) GetStorageConfig() (*config.StorageData, error) { return &p.cfg.Storage, nil }

func (p *staticProvider) GetControllers() ([]config.ControllerData, error) {
	return p.cfg.Controllers, nil
}

func (p *staticProvider) IsReadOnly() bool { return true }

func (p *staticProvider) Close() error { return nil }

func sqliteConfig(t *testing.T) (*config.ConfigData, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readings.db")
	cfg := &config.ConfigData{
		Storage: config.StorageData{SQLite: &config.SQLiteData{Path: path}},
	}
	cfg.ApplyDefaults()
	return cfg, path
}

// assertClosed checks that no connection holds the WAL database open. SQLite
// removes the -wal file when the last connection closes.
func assertClosed(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database was never created: %v", err)
	}
	if _, err := os.Stat(path + "-wal"); !os.IsNotExist(err) {
		t.Errorf("%s-wal still present (err=%v), database left open", path, err)
	}
}

func TestRunReleasesStorageWhenStartupFails(t *testing.T) {
	log.SetLogger(nil)

	cfg, path := sqliteConfig(t)
	cfg.Readers = []config.ReaderData{{Name: "serial", Type: "rtl433"}}

	done := make(chan error, 1)
	go func() {
		done <- New(&staticProvider{cfg: cfg}, zap.NewNop().Sugar()).Run(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error for an unknown reader type")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after a failed startup")
	}
	assertClosed(t, path)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	log.SetLogger(nil)

	cfg, path := sqliteConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- New(&staticProvider{cfg: cfg}, zap.NewNop().Sugar()).Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assertClosed(t, path)
}
