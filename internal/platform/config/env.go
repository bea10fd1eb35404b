package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv populates cfg from environment variables using its env tags.
func ParseEnv(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
