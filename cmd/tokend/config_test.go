package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokend.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServerConfig(t *testing.T) {
	hash := base64.StdEncoding.EncodeToString([]byte("$2a$04$abcdefghijklmnopqrstuv"))
	path := writeConfig(t, `
server:
  listen: ":9090"
backend:
  kind: memory
log:
  format: text
users:
  alice: "`+hash+`"
`)

	sc, err := loadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Server.Listen != ":9090" || sc.Backend.Kind != backendMemory || sc.Log.Format != "text" {
		t.Fatalf("unexpected config %+v", sc)
	}
	if sc.Log.Level != "info" || sc.Archive.BatchSize != 500 {
		t.Fatalf("defaults not applied: %+v", sc)
	}
	users, err := sc.userHashes()
	if err != nil {
		t.Fatalf("userHashes: %v", err)
	}
	if string(users["alice"]) != "$2a$04$abcdefghijklmnopqrstuv" {
		t.Fatalf("unexpected hash %q", users["alice"])
	}
}

func TestLoadServerConfigRejects(t *testing.T) {
	cases := map[string]string{
		"redis without address": "backend:\n  kind: redis\n",
		"postgres without dsn":  "backend:\n  kind: postgres\n",
		"unknown backend":       "backend:\n  kind: etcd\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadServerConfig(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestUserHashesRejectsBadBase64(t *testing.T) {
	sc := serverConfig{Users: map[string]string{"bob": "%%%"}}
	if _, err := sc.userHashes(); err == nil {
		t.Fatal("expected error")
	}
}
