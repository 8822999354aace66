package registration

import (
	"github.com/openvenue/gatepass/internal/registration/repository"
	"github.com/openvenue/gatepass/internal/registration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registration.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
