package payment

import (
	"github.com/openvenue/gatepass/internal/payment/adapters"
	adapterrazorpay "github.com/openvenue/gatepass/internal/payment/adapters/razorpay"
	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
	gatewayrazorpay "github.com/openvenue/gatepass/internal/payment/gateway/razorpay"
	"github.com/openvenue/gatepass/internal/payment/repository"
	paymentservice "github.com/openvenue/gatepass/internal/payment/service"
	"github.com/openvenue/gatepass/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			adapterrazorpay.NewFactory(),
		)
	}),
	fx.Provide(gatewayrazorpay.NewClient),
	fx.Provide(func(c *gatewayrazorpay.Client) paymentdomain.Gateway { return c }),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
