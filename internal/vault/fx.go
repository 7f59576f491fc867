package vault

import (
	"github.com/soloware/dealdesk/internal/config"
	"go.uber.org/fx"
)

func NewFromConfig(cfg config.Config) (*Vault, error) {
	return New(cfg.VaultSecret)
}

var Module = fx.Module("vault",
	fx.Provide(NewFromConfig),
)
