package chat

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "chatdeck.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.TokenIssuer != "chatdeck" {
		t.Fatalf("expected default issuer, got %q", cfg.TokenIssuer)
	}
	if cfg.AccessTokenTTL != 24*time.Hour {
		t.Fatalf("expected default access ttl, got %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 168*time.Hour {
		t.Fatalf("expected default refresh ttl, got %v", cfg.RefreshTokenTTL)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("CHATDECK_HTTP_ADDR", "env-addr")
	t.Setenv("CHATDECK_TOKEN_SECRET", "env-secret")

	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-addr",
		"-db-path", "flag.db",
		"-access-token-ttl", "1h",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-addr" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "flag.db" {
		t.Fatalf("expected flag db path, got %q", cfg.DBPath)
	}
	if cfg.TokenSecret != "env-secret" {
		t.Fatalf("expected env token secret, got %q", cfg.TokenSecret)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("expected flag access ttl, got %v", cfg.AccessTokenTTL)
	}
}
