package di

import (
	"context"
	"fmt"
	"time"

	"filon/application/commands"
	"filon/application/commands/bus"
	commandhandlers "filon/application/commands/handlers"
	"filon/application/ports"
	"filon/application/queries"
	querybus "filon/application/queries/bus"
	queryhandlers "filon/application/queries/handlers"
	"filon/domain/versioning"
	"filon/infrastructure/config"
	"filon/infrastructure/messaging/eventbridge"
	"filon/infrastructure/persistence/dynamodb"
	"filon/infrastructure/persistence/memory"
	"filon/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance honouring LOG_LEVEL
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideSnapshotRepository selects the snapshot store for STORAGE_BACKEND
func ProvideSnapshotRepository(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.SnapshotRepository {
	if cfg.StorageBackend == config.StorageDynamoDB {
		return dynamodb.NewSnapshotRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger)
	}
	return memory.NewSnapshotRepository()
}

// ProvideBranchRepository selects the branch store for STORAGE_BACKEND
func ProvideBranchRepository(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.BranchRepository {
	if cfg.StorageBackend == config.StorageDynamoDB {
		return dynamodb.NewBranchRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger)
	}
	return memory.NewBranchRepository()
}

// ProvideLocker creates the merge lock. Locks only span processes when they
// live in DynamoDB.
func ProvideLocker(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.Locker {
	if cfg.StorageBackend == config.StorageDynamoDB {
		return dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger)
	}
	return memory.NewLocker()
}

// ProvideEventPublisher publishes to EventBridge with the dynamodb backend and
// keeps an in-process log otherwise.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.StorageBackend == config.StorageDynamoDB && cfg.EventBusName != "" {
		return eventbridge.NewPublisher(client, cfg.EventBusName, cfg.EventSource, logger)
	}
	return memory.NewEventLog(logger)
}

// ProvideCache creates the query result cache
func ProvideCache() (ports.Cache, func()) {
	cache := memory.NewCache(time.Minute)
	return cache, cache.Close
}

// ProvideMetrics creates metrics instance
func ProvideMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics {
		return observability.NewNoopMetrics()
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("filon", cfg.EnableTracing)
}

// ProvideVersioningPolicy maps configuration onto the versioning policy
func ProvideVersioningPolicy(cfg *config.Config) versioning.VersioningPolicy {
	policy := versioning.DefaultVersioningPolicy()
	policy.MaxVersions = cfg.MaxVersions
	policy.VersionOnNodeCount = cfg.AutosaveNodeThreshold
	policy.VersionOnTimeElapsed = cfg.AutosaveInterval
	policy.RetentionPeriod = cfg.RetentionPeriod
	return policy
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	cfg *config.Config,
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	publisher ports.EventPublisher,
	locker ports.Locker,
	policy versioning.VersioningPolicy,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	middlewares := []bus.Middleware{
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	}
	if tracer.Enabled() {
		middlewares = append(middlewares, bus.TracingMiddleware(tracer))
	}
	commandBus := bus.NewCommandBus(middlewares...)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.SaveSnapshotCommand{}, commandhandlers.NewSaveSnapshotHandler(snapshots, branches, publisher, policy, logger)},
		{commands.RestoreSnapshotCommand{}, commandhandlers.NewRestoreSnapshotHandler(snapshots, branches, publisher, logger)},
		{commands.MergeSnapshotsCommand{}, commandhandlers.NewMergeSnapshotsHandler(snapshots, branches, publisher, logger)},
		{commands.PruneSnapshotsCommand{}, commandhandlers.NewPruneSnapshotsHandler(snapshots, branches, policy, logger)},
		{commands.CreateBranchCommand{}, commandhandlers.NewCreateBranchHandler(snapshots, branches, publisher, logger)},
		{commands.MergeBranchCommand{}, commandhandlers.NewMergeBranchHandler(snapshots, branches, publisher, locker, cfg.MergeLockTTL, logger)},
	}
	for _, reg := range registrations {
		if err := commandBus.Register(reg.cmd, reg.handler); err != nil {
			return nil, err
		}
	}

	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers. Diff results
// of two immutable snapshots are cached.
func ProvideQueryBus(
	cfg *config.Config,
	snapshots ports.SnapshotRepository,
	branches ports.BranchRepository,
	cache ports.Cache,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	measured := querybus.NewMetricsMiddleware(metrics)
	cached := querybus.NewCachingMiddleware(cache, int(cfg.DiffCacheTTL.Seconds()), logger)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetSnapshotQuery{}, measured.Wrap(queryhandlers.NewGetSnapshotHandler(snapshots))},
		{queries.DiffSnapshotsQuery{}, measured.Wrap(cached.Wrap(queryhandlers.NewDiffSnapshotsHandler(snapshots, metrics, logger)))},
		{queries.TimelineQuery{}, measured.Wrap(queryhandlers.NewTimelineHandler(snapshots, branches))},
		{queries.ListBranchesQuery{}, measured.Wrap(queryhandlers.NewListBranchesHandler(branches))},
		{queries.GetBranchQuery{}, measured.Wrap(queryhandlers.NewGetBranchHandler(branches))},
	}
	for _, reg := range registrations {
		if err := queryBus.Register(reg.query, reg.handler); err != nil {
			return nil, err
		}
	}

	return queryBus, nil
}
