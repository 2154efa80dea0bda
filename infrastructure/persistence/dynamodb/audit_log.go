package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"schemacanvas-backend/application/ports"
	apperrors "schemacanvas-backend/pkg/errors"
)

// AuditLog implements ports.AuditLog on DynamoDB. Entries live in the project
// partition under an AUDIT# sort key.
type AuditLog struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewAuditLog creates a DynamoDB audit log.
func NewAuditLog(client *dynamodb.Client, tableName string, logger *zap.Logger) *AuditLog {
	return &AuditLog{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type auditItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	EntryID    string `dynamodbav:"EntryID"`
	ProjectID  string `dynamodbav:"ProjectID"`
	ActorID    string `dynamodbav:"ActorID"`
	Action     string `dynamodbav:"Action"`
	Detail     string `dynamodbav:"Detail"`
	At         string `dynamodbav:"At"`
}

// Record appends an audit entry.
func (l *AuditLog) Record(ctx context.Context, entry *ports.AuditEntry) error {
	item := auditItem{
		PK:         projectPK(entry.ProjectID),
		SK:         fmt.Sprintf("AUDIT#%s", entry.ID),
		EntityType: entityAudit,
		EntryID:    entry.ID,
		ProjectID:  entry.ProjectID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		Detail:     entry.Detail,
		At:         entry.At.Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      av,
	})
	if err != nil {
		l.logger.Error("failed to record audit entry",
			zap.String("project_id", entry.ProjectID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return apperrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return nil
}
