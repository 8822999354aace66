package notifier

import (
	"github.com/openvenue/gatepass/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("notifier",
	fx.Provide(NewFromConfig),
	fx.Provide(NewDispatcher),
)

func NewFromConfig(cfg config.Config) Provider {
	if !cfg.Email.Enabled {
		return &NoOpProvider{}
	}
	return NewSMTP(SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
}
