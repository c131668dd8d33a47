package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeFile(t, "cfg.yml", `
auth:
  secret: test-secret
db:
  dsn: "file:test.db"
`)
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q; want :8080", c.HTTP.Addr)
	}
	if c.DB.Driver != "postgres" {
		t.Errorf("DB.Driver = %q; want postgres", c.DB.Driver)
	}
	if c.Auth.TokenTTL != 7*24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v; want 168h", c.Auth.TokenTTL)
	}
	if len(c.CORS.AllowedOrigins) != 1 || c.CORS.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("CORS.AllowedOrigins = %v", c.CORS.AllowedOrigins)
	}
}

func TestLoadMergesFiles(t *testing.T) {
	base := writeFile(t, "base.yml", `
env: production
auth:
  secret: base-secret
db:
  dsn: "postgres://base"
`)
	over := writeFile(t, "over.yml", `
db:
  driver: sqlite
  dsn: "file:over.db"
`)
	c, err := Load(base + "," + over)
	if err != nil {
		t.Fatal(err)
	}
	if c.Env != "production" {
		t.Errorf("Env = %q; want production", c.Env)
	}
	if c.DB.Driver != "sqlite" || c.DB.DSN != "file:over.db" {
		t.Errorf("DB = %+v; want sqlite/file:over.db", c.DB)
	}
	if c.Auth.Secret != "base-secret" {
		t.Errorf("Auth.Secret = %q; want base-secret", c.Auth.Secret)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	p := writeFile(t, "cfg.yml", `
db:
  dsn: "file:test.db"
`)
	if _, err := Load(p); err == nil {
		t.Fatal("Load accepted config without auth secret")
	}
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("DB_DSN", "postgres://env")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.Auth.Secret != "env-secret" || c.DB.DSN != "postgres://env" {
		t.Errorf("env fallback not applied: %+v", c)
	}
}
