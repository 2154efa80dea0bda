package di

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"schemacanvas-backend/application/services"
	"schemacanvas-backend/infrastructure/config"
	"schemacanvas-backend/interfaces/http/rest"
	ws "schemacanvas-backend/interfaces/websocket"
	"schemacanvas-backend/pkg/observability"
)

// Container holds the application's wired dependencies.
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	Metrics        *observability.Collector
	DiagramService *services.DiagramService
	Hub            *ws.Hub
	Router         chi.Router
}

// NewContainer wires the application by hand. The wire.go declaration exists
// for regenerating this wiring; the hand-written version keeps the build free
// of a codegen step.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}

	awsCfg, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dynamoClient := ProvideDynamoDBClient(awsCfg)
	eventBridgeClient := ProvideEventBridgeClient(awsCfg)

	metrics := ProvideMetrics()
	projects := ProvideProjectRepository(cfg, dynamoClient, logger)
	versions := ProvideVersionRepository(cfg, dynamoClient, logger)
	audit := ProvideAuditLog(cfg, dynamoClient, logger)
	idempotency := ProvideIdempotencyStore()

	listCache, err := ProvideProjectListCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	service := ProvideDiagramService(cfg, projects, versions, audit, listCache, idempotency, metrics, logger)

	forwarder := ProvideForwarder(cfg, eventBridgeClient, logger)
	hub := ProvideHub(forwarder, metrics, logger)
	wsServer := ProvideWSServer(hub, service, logger)

	authenticator, err := ProvideAuthenticator(cfg, logger)
	if err != nil {
		return nil, err
	}
	projectHandler := ProvideProjectHandler(service, logger)

	router := rest.NewRouter(rest.RouterConfig{
		ProjectHandler: projectHandler,
		WSServer:       wsServer,
		Authenticator:  authenticator,
		Metrics:        metrics,
		Logger:         logger,
		EnableCORS:     cfg.EnableCORS,
	})

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		DiagramService: service,
		Hub:            hub,
		Router:         router,
	}, nil
}
