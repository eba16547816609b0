// Package dynamodb stores snapshots, branches and merge locks in a single
// DynamoDB table.
//
// Key layout:
//
//	SNAPSHOT#<id> / METADATA    GSI1: BRANCH#<branchID> / VERSION#<version>
//	BRANCH#<id>   / METADATA    GSI1: GRAPH#<graphID>   / BRANCH#<name>
//	LOCK#<name>   / LOCK
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is the subset of the DynamoDB API the repositories use.
// *dynamodb.Client satisfies it.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

const (
	metadataSK = "METADATA"
	lockSK     = "LOCK"

	entitySnapshot = "SNAPSHOT"
	entityBranch   = "BRANCH"

	defaultIndexName = "GSI1"
)

func snapshotPK(id string) string { return "SNAPSHOT#" + id }
func branchPK(id string) string   { return "BRANCH#" + id }
func graphPK(id string) string    { return "GRAPH#" + id }
func lockPK(name string) string   { return "LOCK#" + name }

func branchNameSK(name string) string { return "BRANCH#" + name }

// versionSK zero-pads so that lexical order on the index matches version order
func versionSK(version int) string { return fmt.Sprintf("VERSION#%010d", version) }

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
