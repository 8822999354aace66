package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/openvenue/gatepass/internal/config"
	"github.com/openvenue/gatepass/internal/event"
	"github.com/openvenue/gatepass/internal/migration"
	"github.com/openvenue/gatepass/internal/notifier"
	"github.com/openvenue/gatepass/internal/observability"
	"github.com/openvenue/gatepass/internal/payment"
	"github.com/openvenue/gatepass/internal/ratelimit"
	"github.com/openvenue/gatepass/internal/registration"
	"github.com/openvenue/gatepass/internal/server"
	"github.com/openvenue/gatepass/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		event.Module,
		registration.Module,
		payment.Module,
		notifier.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
