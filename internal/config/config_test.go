package config

import (
	"os"
	"path/filepath"
	"testing"
)

// Load 带 sync.Once，整个测试进程只加载一次
func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 9090\ndatabase:\n  path: test.db\njwt:\n  secret: test-secret\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Address != "127.0.0.1" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.Database.MaxOpenConns != 10 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("pool = %d/%d, want 10/5", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Database.BusyTimeoutMS != 5000 {
		t.Errorf("busy_timeout_ms = %d, want 5000", cfg.Database.BusyTimeoutMS)
	}
	if cfg.JWT.ExpireHours != 24 {
		t.Errorf("expire_hours = %d, want 24", cfg.JWT.ExpireHours)
	}
	if Get() != cfg {
		t.Error("Get should return the loaded config")
	}
}
