// Package dynamodb holds the DynamoDB-backed repositories. Layout follows a
// single-table design: project metadata under PROJECT#id / METADATA, version
// snapshots under PROJECT#id / VERSION#ulid, audit entries under
// PROJECT#id / AUDIT#id. GSI1 indexes projects by owner.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"schemacanvas-backend/application/ports"
	apperrors "schemacanvas-backend/pkg/errors"
)

const (
	entityProject = "PROJECT"
	entityVersion = "VERSION"
	entityAudit   = "AUDIT"

	gsiOwner = "GSI1"
)

func projectPK(projectID string) string { return fmt.Sprintf("PROJECT#%s", projectID) }

// ProjectRepository implements ports.ProjectRepository on DynamoDB. The
// conditional update on the Version attribute is the single concurrency
// primitive backing optimistic writes.
type ProjectRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewProjectRepository creates a DynamoDB project repository.
func NewProjectRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type projectItem struct {
	PK            string            `dynamodbav:"PK"`
	SK            string            `dynamodbav:"SK"`
	GSI1PK        string            `dynamodbav:"GSI1PK"`
	GSI1SK        string            `dynamodbav:"GSI1SK"`
	EntityType    string            `dynamodbav:"EntityType"`
	ProjectID     string            `dynamodbav:"ProjectID"`
	OwnerID       string            `dynamodbav:"OwnerID"`
	TeamID        string            `dynamodbav:"TeamID,omitempty"`
	Name          string            `dynamodbav:"Name"`
	Content       []byte            `dynamodbav:"Content"`
	ContentHash   string            `dynamodbav:"ContentHash"`
	Version       int               `dynamodbav:"Version"`
	Collaborators map[string]string `dynamodbav:"Collaborators,omitempty"`
	TeamMembers   map[string]string `dynamodbav:"TeamMembers,omitempty"`
	CreatedAt     string            `dynamodbav:"CreatedAt"`
	UpdatedAt     string            `dynamodbav:"UpdatedAt"`
	UpdatedBy     string            `dynamodbav:"UpdatedBy"`
}

// GetByID fetches a project record.
func (r *ProjectRepository) GetByID(ctx context.Context, projectID string) (*ports.ProjectRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: projectPK(projectID)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, r.wrapAWSError("GetItem", err)
	}
	if out.Item == nil {
		return nil, apperrors.NewNotFoundError("project")
	}

	var item projectItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return item.toRecord(), nil
}

// ListByOwner queries GSI1 for the owner's projects.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*ports.ProjectRecord, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("OWNER#%s", ownerID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsiOwner),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, r.wrapAWSError("Query", err)
	}

	records := make([]*ports.ProjectRecord, 0, len(out.Items))
	for _, raw := range out.Items {
		var item projectItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("failed to unmarshal project item", zap.Error(err))
			continue
		}
		records = append(records, item.toRecord())
	}
	return records, nil
}

// Create stores a new project record, failing if one already exists.
func (r *ProjectRepository) Create(ctx context.Context, record *ports.ProjectRecord) error {
	item := fromRecord(record)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return apperrors.NewValidationError("project already exists")
		}
		return r.wrapAWSError("PutItem", err)
	}
	return nil
}

// Update overwrites content and increments Version by exactly one, guarded
// by a condition on the stored Version. A failed condition maps to
// VersionConflict.
func (r *ProjectRepository) Update(ctx context.Context, projectID string, expectedVersion int, update ports.ContentUpdate) (*ports.ProjectRecord, error) {
	upd := expression.
		Set(expression.Name("Content"), expression.Value(update.Content)).
		Set(expression.Name("ContentHash"), expression.Value(update.ContentHash)).
		Set(expression.Name("UpdatedBy"), expression.Value(update.UpdatedBy)).
		Set(expression.Name("UpdatedAt"), expression.Value(time.Now().Format(time.RFC3339))).
		Add(expression.Name("Version"), expression.Value(1))
	cond := expression.Name("Version").Equal(expression.Value(expectedVersion))

	expr, err := expression.NewBuilder().WithUpdate(upd).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: projectPK(projectID)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			stored := -1
			if current, gerr := r.GetByID(ctx, projectID); gerr == nil {
				stored = current.Version
			}
			return nil, apperrors.NewVersionConflictError(expectedVersion, stored)
		}
		return nil, r.wrapAWSError("UpdateItem", err)
	}

	var item projectItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated project: %w", err)
	}
	return item.toRecord(), nil
}

func (r *ProjectRepository) wrapAWSError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		r.logger.Error("DynamoDB call failed",
			zap.String("operation", op),
			zap.String("code", apiErr.ErrorCode()),
			zap.Error(err),
		)
	} else {
		r.logger.Error("DynamoDB call failed", zap.String("operation", op), zap.Error(err))
	}
	return apperrors.NewUnavailableError("dynamodb").WithCause(err)
}

func (i projectItem) toRecord() *ports.ProjectRecord {
	createdAt, _ := time.Parse(time.RFC3339, i.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, i.UpdatedAt)
	return &ports.ProjectRecord{
		ID:            i.ProjectID,
		OwnerID:       i.OwnerID,
		TeamID:        i.TeamID,
		Name:          i.Name,
		Content:       i.Content,
		ContentHash:   i.ContentHash,
		Version:       i.Version,
		Collaborators: toRoles(i.Collaborators),
		TeamMembers:   toRoles(i.TeamMembers),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		UpdatedBy:     i.UpdatedBy,
	}
}

func fromRecord(rec *ports.ProjectRecord) projectItem {
	return projectItem{
		PK:            projectPK(rec.ID),
		SK:            "METADATA",
		GSI1PK:        fmt.Sprintf("OWNER#%s", rec.OwnerID),
		GSI1SK:        projectPK(rec.ID),
		EntityType:    entityProject,
		ProjectID:     rec.ID,
		OwnerID:       rec.OwnerID,
		TeamID:        rec.TeamID,
		Name:          rec.Name,
		Content:       rec.Content,
		ContentHash:   rec.ContentHash,
		Version:       rec.Version,
		Collaborators: fromRoles(rec.Collaborators),
		TeamMembers:   fromRoles(rec.TeamMembers),
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     rec.UpdatedAt.Format(time.RFC3339),
		UpdatedBy:     rec.UpdatedBy,
	}
}

func toRoles(in map[string]string) map[string]ports.Role {
	if in == nil {
		return nil
	}
	out := make(map[string]ports.Role, len(in))
	for k, v := range in {
		out[k] = ports.Role(v)
	}
	return out
}

func fromRoles(in map[string]ports.Role) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = string(v)
	}
	return out
}
