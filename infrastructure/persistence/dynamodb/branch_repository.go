package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"filon/domain/branching"
	pkgerrors "filon/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// BranchRepository implements ports.BranchRepository using DynamoDB with
// optimistic versioning on updates.
type BranchRepository struct {
	client    Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewBranchRepository creates a new BranchRepository
func NewBranchRepository(client Client, tableName, indexName string, logger *zap.Logger) *BranchRepository {
	if indexName == "" {
		indexName = defaultIndexName
	}
	return &BranchRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// branchItem represents the DynamoDB item structure for a branch
type branchItem struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	GSI1PK           string `dynamodbav:"GSI1PK"`
	GSI1SK           string `dynamodbav:"GSI1SK"`
	EntityType       string `dynamodbav:"EntityType"`
	BranchID         string `dynamodbav:"BranchID"`
	GraphID          string `dynamodbav:"GraphID"`
	Name             string `dynamodbav:"Name"`
	ParentSnapshotID string `dynamodbav:"ParentSnapshotID,omitempty"`
	HeadSnapshotID   string `dynamodbav:"HeadSnapshotID,omitempty"`
	MergedInto       string `dynamodbav:"MergedInto,omitempty"`
	Status           string `dynamodbav:"Status"`
	CreatedAt        string `dynamodbav:"CreatedAt"`
	UpdatedAt        string `dynamodbav:"UpdatedAt"`
	Version          int    `dynamodbav:"Version"`
}

// Save creates or updates a branch. The write only succeeds when no item
// exists yet or the stored version is lower than the branch's.
func (r *BranchRepository) Save(ctx context.Context, b *branching.Branch) error {
	if b == nil || b.ID() == "" {
		return pkgerrors.NewValidationError("branch id is required")
	}

	item := branchItem{
		PK:               branchPK(b.ID()),
		SK:               metadataSK,
		GSI1PK:           graphPK(b.GraphID()),
		GSI1SK:           branchNameSK(b.Name()),
		EntityType:       entityBranch,
		BranchID:         b.ID(),
		GraphID:          b.GraphID(),
		Name:             b.Name(),
		ParentSnapshotID: b.ParentSnapshotID(),
		HeadSnapshotID:   b.HeadSnapshotID(),
		MergedInto:       b.MergedInto(),
		Status:           string(b.Status()),
		CreatedAt:        b.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:        b.UpdatedAt().UTC().Format(time.RFC3339Nano),
		Version:          b.Version(),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal branch: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("PK")).
		Or(expression.Name("Version").LessThan(expression.Value(b.Version())))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return pkgerrors.NewConflictError("branch was modified concurrently").
				WithDetail("branchID", b.ID()).
				WithDetail("version", b.Version())
		}
		r.logger.Error("Failed to save branch to DynamoDB",
			zap.Error(err),
			zap.String("branchID", b.ID()),
		)
		return pkgerrors.NewDatabaseError("save branch", err)
	}

	r.logger.Debug("Saved branch to DynamoDB",
		zap.String("branchID", b.ID()),
		zap.String("name", b.Name()),
		zap.Int("version", b.Version()),
	)
	return nil
}

// GetByID retrieves a branch by its ID
func (r *BranchRepository) GetByID(ctx context.Context, id string) (*branching.Branch, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(branchPK(id), metadataSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get branch", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("branch").
			WithCode(pkgerrors.CodeBranchNotFound).
			WithDetail("branchID", id)
	}
	return decodeBranch(out.Item)
}

// ListByGraph returns the branches of a graph ordered by creation time
func (r *BranchRepository) ListByGraph(ctx context.Context, graphID string) ([]*branching.Branch, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(graphPK(graphID))).
		And(expression.Key("GSI1SK").BeginsWith("BRANCH#"))
	items, err := r.queryIndex(ctx, keyCond)
	if err != nil {
		return nil, err
	}

	branches := make([]*branching.Branch, 0, len(items))
	for _, raw := range items {
		b, err := decodeBranch(raw)
		if err != nil {
			r.logger.Warn("Failed to decode branch item", zap.Error(err))
			continue
		}
		branches = append(branches, b)
	}

	sort.Slice(branches, func(i, j int) bool {
		if !branches[i].CreatedAt().Equal(branches[j].CreatedAt()) {
			return branches[i].CreatedAt().Before(branches[j].CreatedAt())
		}
		return branches[i].ID() < branches[j].ID()
	})
	return branches, nil
}

// FindByName retrieves a branch of a graph by name
func (r *BranchRepository) FindByName(ctx context.Context, graphID, name string) (*branching.Branch, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(graphPK(graphID))).
		And(expression.Key("GSI1SK").Equal(expression.Value(branchNameSK(name))))
	items, err := r.queryIndex(ctx, keyCond)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, pkgerrors.NewNotFoundError("branch").
			WithCode(pkgerrors.CodeBranchNotFound).
			WithDetail("graphID", graphID).
			WithDetail("name", name)
	}
	return decodeBranch(items[0])
}

func (r *BranchRepository) queryIndex(ctx context.Context, keyCond expression.KeyConditionBuilder) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query branches", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func decodeBranch(raw map[string]types.AttributeValue) (*branching.Branch, error) {
	var item branchItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal branch: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid branch createdAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid branch updatedAt: %w", err)
	}
	return branching.ReconstructBranch(
		item.BranchID, item.GraphID, item.Name, item.ParentSnapshotID, item.HeadSnapshotID, item.MergedInto,
		branching.BranchStatus(item.Status), createdAt, updatedAt, item.Version,
	)
}
