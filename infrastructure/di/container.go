package di

import (
	"filon/application/commands/bus"
	"filon/application/ports"
	querybus "filon/application/queries/bus"
	"filon/infrastructure/config"
	"filon/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	Snapshots      ports.SnapshotRepository
	Branches       ports.BranchRepository
	EventPublisher ports.EventPublisher
	Locker         ports.Locker
	Cache          ports.Cache
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
}
