// Package chat parses chat command flags and composes the chat
// process entrypoint.
package chat

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/chatdeck/chatdeck/internal/app"
	entrypoint "github.com/chatdeck/chatdeck/internal/platform/cmd"
)

// Config holds chat command configuration.
type Config struct {
	HTTPAddr        string        `env:"CHATDECK_HTTP_ADDR"         envDefault:":8080"`
	DBPath          string        `env:"CHATDECK_DB_PATH"           envDefault:"chatdeck.db"`
	TokenSecret     string        `env:"CHATDECK_TOKEN_SECRET"`
	TokenIssuer     string        `env:"CHATDECK_TOKEN_ISSUER"      envDefault:"chatdeck"`
	AccessTokenTTL  time.Duration `env:"CHATDECK_ACCESS_TOKEN_TTL"  envDefault:"24h"`
	RefreshTokenTTL time.Duration `env:"CHATDECK_REFRESH_TOKEN_TTL" envDefault:"168h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "JWT signing secret")
	fs.StringVar(&cfg.TokenIssuer, "token-issuer", cfg.TokenIssuer, "JWT issuer claim")
	fs.DurationVar(&cfg.AccessTokenTTL, "access-token-ttl", cfg.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTokenTTL, "refresh-token-ttl", cfg.RefreshTokenTTL, "refresh token lifetime")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the chat app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(context.Context) error {
		if err := app.Run(ctx, app.Config{
			HTTPAddr:        cfg.HTTPAddr,
			DBPath:          cfg.DBPath,
			TokenSecret:     cfg.TokenSecret,
			TokenIssuer:     cfg.TokenIssuer,
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		}); err != nil {
			return fmt.Errorf("serve chat: %w", err)
		}
		return nil
	})
}
