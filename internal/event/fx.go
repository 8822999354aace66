package event

import (
	"github.com/openvenue/gatepass/internal/event/repository"
	"github.com/openvenue/gatepass/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
