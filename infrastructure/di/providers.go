// Package di wires the application's dependencies.
package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"schemacanvas-backend/application/ports"
	"schemacanvas-backend/application/services"
	"schemacanvas-backend/infrastructure/cache"
	"schemacanvas-backend/infrastructure/config"
	"schemacanvas-backend/infrastructure/messaging/eventbridge"
	dynamorepo "schemacanvas-backend/infrastructure/persistence/dynamodb"
	"schemacanvas-backend/infrastructure/persistence/memory"
	"schemacanvas-backend/interfaces/http/rest/handlers"
	"schemacanvas-backend/interfaces/http/rest/middleware"
	ws "schemacanvas-backend/interfaces/websocket"
	"schemacanvas-backend/pkg/auth"
	"schemacanvas-backend/pkg/observability"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

// ProvideAWSConfig loads the default AWS configuration.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client.
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client.
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("schemacanvas")
}

// ProvideProjectRepository selects the project store. The DynamoDB path wraps
// writes in a circuit breaker.
func ProvideProjectRepository(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.ProjectRepository {
	if cfg.UseMemoryStore {
		return memory.NewProjectRepository()
	}
	repo := dynamorepo.NewProjectRepository(client, cfg.DynamoDBTable, logger)
	return dynamorepo.NewBreakerProjectRepository(repo, dynamorepo.DefaultBreakerConfig("project-writes"), logger)
}

// ProvideVersionRepository selects the snapshot store.
func ProvideVersionRepository(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.VersionRepository {
	if cfg.UseMemoryStore {
		return memory.NewVersionRepository()
	}
	return dynamorepo.NewVersionRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideAuditLog selects the audit store.
func ProvideAuditLog(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.AuditLog {
	if cfg.UseMemoryStore {
		return memory.NewAuditLog()
	}
	return dynamorepo.NewAuditLog(client, cfg.DynamoDBTable, logger)
}

// ProvideIdempotencyStore creates the idempotency store.
func ProvideIdempotencyStore() ports.IdempotencyStore {
	return memory.NewIdempotencyStore()
}

// ProvideProjectListCache selects the listing cache: Valkey when an address
// is configured, in-process otherwise.
func ProvideProjectListCache(cfg *config.Config, logger *zap.Logger) (ports.ProjectListCache, error) {
	if cfg.ValkeyAddress == "" {
		return cache.NewMemoryCache(cfg.CacheTTL), nil
	}
	client, err := cache.NewValkeyClient(cfg.ValkeyAddress, cfg.ValkeyPassword)
	if err != nil {
		return nil, err
	}
	return cache.NewValkeyCache(client, cfg.CacheTTL, logger), nil
}

// ProvideDiagramService wires the persistence service.
func ProvideDiagramService(
	cfg *config.Config,
	projects ports.ProjectRepository,
	versions ports.VersionRepository,
	audit ports.AuditLog,
	listCache ports.ProjectListCache,
	idempotency ports.IdempotencyStore,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.DiagramService {
	return services.NewDiagramService(
		projects, versions, audit, listCache, idempotency, logger,
		services.WithSnapshotWindow(cfg.SnapshotWindow),
		services.WithMaxContentBytes(cfg.MaxContentBytes),
		services.WithMetrics(metrics),
	)
}

// ProvideForwarder creates the EventBridge mirror when a bus is configured.
func ProvideForwarder(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ws.Forwarder {
	if cfg.UseMemoryStore || cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideHub creates the relay hub.
func ProvideHub(forwarder ws.Forwarder, metrics *observability.Collector, logger *zap.Logger) *ws.Hub {
	return ws.NewHub(forwarder, metrics, logger)
}

// ProvideWSServer creates the websocket server.
func ProvideWSServer(hub *ws.Hub, service *services.DiagramService, logger *zap.Logger) *ws.Server {
	return ws.NewServer(hub, service, logger)
}

// ProvideAuthenticator creates the JWT middleware.
func ProvideAuthenticator(cfg *config.Config, logger *zap.Logger) (*middleware.Authenticator, error) {
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
	if err != nil {
		return nil, err
	}
	return middleware.NewAuthenticator(validator, logger), nil
}

// ProvideProjectHandler creates the REST handler.
func ProvideProjectHandler(service *services.DiagramService, logger *zap.Logger) *handlers.ProjectHandler {
	return handlers.NewProjectHandler(service, logger)
}
