package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"schemacanvas-backend/application/ports"
	apperrors "schemacanvas-backend/pkg/errors"
)

func versionSK(versionID string) string { return fmt.Sprintf("VERSION#%s", versionID) }

// VersionRepository implements ports.VersionRepository on DynamoDB. Snapshot
// ids are ULIDs, so querying the VERSION# range with ScanIndexForward=false
// yields newest-first without a separate timestamp index.
type VersionRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewVersionRepository creates a DynamoDB version repository.
func NewVersionRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *VersionRepository {
	return &VersionRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type versionItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	VersionID   string `dynamodbav:"VersionID"`
	ProjectID   string `dynamodbav:"ProjectID"`
	Content     []byte `dynamodbav:"Content"`
	ContentHash string `dynamodbav:"ContentHash"`
	Description string `dynamodbav:"Description"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	CreatedBy   string `dynamodbav:"CreatedBy"`
}

// Append stores a snapshot. Snapshots are write-once.
func (r *VersionRepository) Append(ctx context.Context, snapshot *ports.VersionSnapshot) error {
	item := versionItem{
		PK:          projectPK(snapshot.ProjectID),
		SK:          versionSK(snapshot.ID),
		EntityType:  entityVersion,
		VersionID:   snapshot.ID,
		ProjectID:   snapshot.ProjectID,
		Content:     snapshot.Content,
		ContentHash: snapshot.ContentHash,
		Description: snapshot.Description,
		CreatedAt:   snapshot.CreatedAt.Format(time.RFC3339),
		CreatedBy:   snapshot.CreatedBy,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal version snapshot: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	if err != nil {
		r.logger.Error("failed to append version snapshot",
			zap.String("project_id", snapshot.ProjectID),
			zap.String("version_id", snapshot.ID),
			zap.Error(err),
		)
		return apperrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	return nil
}

// ListByProject pages through snapshots newest-first. Page is 1-based. The
// total comes from a COUNT query over the same key range.
func (r *VersionRepository) ListByProject(ctx context.Context, projectID string, page, limit int) ([]*ports.VersionSnapshot, int, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("SK").BeginsWith("VERSION#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query expression: %w", err)
	}

	countOut, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
	})
	if err != nil {
		return nil, 0, apperrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	total := int(countOut.Count)

	// Walk forward page by page; snapshot histories are small enough that
	// skipping (page-1)*limit items per request is acceptable.
	skip := (page - 1) * limit
	var (
		items   []versionItem
		lastKey map[string]types.AttributeValue
	)
	for len(items) < skip+limit {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, 0, apperrors.NewUnavailableError("dynamodb").WithCause(err)
		}
		var pageItems []versionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &pageItems); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal version snapshots: %w", err)
		}
		items = append(items, pageItems...)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	if skip >= len(items) {
		return []*ports.VersionSnapshot{}, total, nil
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}

	out := make([]*ports.VersionSnapshot, 0, end-skip)
	for _, item := range items[skip:end] {
		out = append(out, item.toSnapshot())
	}
	return out, total, nil
}

// GetByID returns one snapshot.
func (r *VersionRepository) GetByID(ctx context.Context, projectID, versionID string) (*ports.VersionSnapshot, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: projectPK(projectID)},
			"SK": &types.AttributeValueMemberS{Value: versionSK(versionID)},
		},
	})
	if err != nil {
		return nil, apperrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	if out.Item == nil {
		return nil, apperrors.NewNotFoundError("version")
	}

	var item versionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version snapshot: %w", err)
	}
	return item.toSnapshot(), nil
}

// LatestCreatedAt returns the creation time of the newest snapshot, or the
// zero time when no snapshot exists yet.
func (r *VersionRepository) LatestCreatedAt(ctx context.Context, projectID string) (time.Time, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
		And(expression.Key("SK").BeginsWith("VERSION#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build query expression: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return time.Time{}, apperrors.NewUnavailableError("dynamodb").WithCause(err)
	}
	if len(out.Items) == 0 {
		return time.Time{}, nil
	}

	var item versionItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal version snapshot: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, item.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse snapshot timestamp: %w", err)
	}
	return createdAt, nil
}

func (i versionItem) toSnapshot() *ports.VersionSnapshot {
	createdAt, _ := time.Parse(time.RFC3339, i.CreatedAt)
	return &ports.VersionSnapshot{
		ID:          i.VersionID,
		ProjectID:   i.ProjectID,
		Content:     i.Content,
		ContentHash: i.ContentHash,
		Description: i.Description,
		CreatedAt:   createdAt,
		CreatedBy:   i.CreatedBy,
	}
}
