package dynamodb

import (
	"context"
	"fmt"
	"time"

	"filon/application/ports"
	pkgerrors "filon/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// DistributedLock provides distributed locking using DynamoDB conditional writes
type DistributedLock struct {
	client    Client
	tableName string
	logger    *zap.Logger
	clock     func() time.Time
}

// lockRecord represents a lock record in DynamoDB
type lockRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"` // unix millis
	TTL        int64  `dynamodbav:"TTL"`       // unix seconds for DynamoDB TTL
}

// NewDistributedLock creates a new distributed lock instance
func NewDistributedLock(client Client, tableName string, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		logger:    logger,
		clock:     time.Now,
	}
}

// Acquire takes the lock on resource for owner. The write succeeds when no
// lock exists, the current one has expired, or owner already holds it.
func (dl *DistributedLock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (ports.Lock, error) {
	now := dl.clock()
	expiresAt := now.Add(ttl)
	lockID := fmt.Sprintf("%s_%d", owner, now.UnixNano())

	av, err := attributevalue.MarshalMap(lockRecord{
		PK:         lockPK(resource),
		SK:         lockSK,
		LockID:     lockID,
		Owner:      owner,
		AcquiredAt: now.UTC().Format(time.RFC3339),
		ExpiresAt:  expiresAt.UnixMilli(),
		TTL:        expiresAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("PK")).
		Or(
			expression.Name("ExpiresAt").LessThan(expression.Value(now.UnixMilli())),
			expression.Name("Owner").Equal(expression.Value(owner)),
		)
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(dl.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			dl.logger.Debug("Failed to acquire lock - already held",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return nil, pkgerrors.NewConflictError("resource is locked").
				WithCode(pkgerrors.CodeLockHeld).
				WithDetail("resource", resource)
		}
		return nil, pkgerrors.NewDatabaseError("acquire lock", err)
	}

	dl.logger.Debug("Lock acquired successfully",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
		zap.String("owner", owner),
		zap.Duration("duration", ttl),
	)

	return &Lock{
		distributedLock: dl,
		resource:        resource,
		lockID:          lockID,
		owner:           owner,
		expiresAt:       expiresAt,
	}, nil
}

// release deletes the lock record if it still carries lockID
func (dl *DistributedLock) release(ctx context.Context, resource, lockID, owner string) error {
	cond := expression.Name("LockID").Equal(expression.Value(lockID))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(dl.tableName),
		Key:                       itemKey(lockPK(resource), lockSK),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			dl.logger.Warn("Lock already released or owned by someone else",
				zap.String("resource", resource),
				zap.String("lockID", lockID),
				zap.String("owner", owner),
			)
			return nil
		}
		return pkgerrors.NewDatabaseError("release lock", err)
	}

	dl.logger.Debug("Lock released successfully",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
	)
	return nil
}

// Lock represents an acquired distributed lock
type Lock struct {
	distributedLock *DistributedLock
	resource        string
	lockID          string
	owner           string
	expiresAt       time.Time
}

// Release releases the lock
func (l *Lock) Release(ctx context.Context) error {
	return l.distributedLock.release(ctx, l.resource, l.lockID, l.owner)
}

// ExpiresAt reports when the lease runs out
func (l *Lock) ExpiresAt() time.Time {
	return l.expiresAt
}
