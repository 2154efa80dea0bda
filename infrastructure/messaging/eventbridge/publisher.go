// Package eventbridge mirrors relayed mutation events onto an AWS EventBridge
// bus for downstream consumers (analytics, webhooks). The relay never depends
// on the mirror: publish failures are logged and dropped.
package eventbridge

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"schemacanvas-backend/domain/events"
)

const (
	// SourceRelay identifies mirrored sync traffic on the bus.
	SourceRelay = "schemacanvas.relay"

	detailTypeMutation = "diagram.mutation"
)

// Publisher mirrors mutation events to EventBridge.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates an EventBridge mirror publisher.
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Forward mirrors one mutation event onto the bus. Errors are logged, never
// returned: mirroring is best-effort and must not slow down or fail the relay
// path.
func (p *Publisher) Forward(ctx context.Context, m events.Mutation) {
	detail, err := json.Marshal(m)
	if err != nil {
		p.logger.Error("failed to marshal mutation event",
			zap.String("event_type", m.Kind()),
			zap.Error(err),
		)
		return
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.eventBusName),
				Source:       aws.String(SourceRelay),
				DetailType:   aws.String(detailTypeMutation),
				Detail:       aws.String(string(detail)),
			},
		},
	})
	if err != nil {
		p.logger.Warn("failed to mirror event to EventBridge",
			zap.String("event_type", m.Kind()),
			zap.String("project_id", m.Project()),
			zap.Error(err),
		)
		return
	}
	if out.FailedEntryCount > 0 {
		for _, entry := range out.Entries {
			if entry.ErrorCode != nil {
				p.logger.Warn("EventBridge rejected mirrored event",
					zap.String("event_type", m.Kind()),
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
	}
}
