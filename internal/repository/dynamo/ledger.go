// Package dynamo implements the visitor ledger against DynamoDB.
//
// The ledger's only hard requirement is an atomic "insert if absent,
// report which branch occurred" write; DynamoDB's conditional PutItem
// provides exactly that, so concurrent duplicate first-time events for the
// same (activity, visitor) pair resolve to exactly one unique.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ledgerItem is the single-table representation of a visitor ledger entry.
type ledgerItem struct {
	PK          string `dynamodbav:"PK"` // LEDGER#<activityID>
	SK          string `dynamodbav:"SK"` // VISITOR#<visitorID>
	FirstSeenAt string `dynamodbav:"FirstSeenAt"`
}

// Ledger implements metrics.VisitorLedger on a DynamoDB table.
type Ledger struct {
	client    DynamoAPI
	tableName string
}

// DynamoAPI is the subset of the DynamoDB client the ledger uses, split
// out so tests can substitute a fake.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// NewLedger connects to DynamoDB and returns a ledger on the given table.
// endpoint, when non-empty, points the client at a local DynamoDB (tests,
// docker-compose) with static credentials.
func NewLedger(ctx context.Context, tableName, region, endpoint string) (*Ledger, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Ledger{client: client, tableName: tableName}, nil
}

// NewLedgerWithClient wraps an existing client; used by tests.
func NewLedgerWithClient(client DynamoAPI, tableName string) *Ledger {
	return &Ledger{client: client, tableName: tableName}
}

func ledgerPK(activityID string) string { return "LEDGER#" + activityID }
func ledgerSK(visitorID string) string  { return "VISITOR#" + visitorID }

// Touch records the (activity, visitor) pair if it was never seen before.
// Returns true when this call created the entry. The conditional
// expression makes the first-write-wins decision inside DynamoDB, not in a
// racy read-then-write.
func (l *Ledger) Touch(ctx context.Context, activityID, visitorID string, now time.Time) (bool, error) {
	item := ledgerItem{
		PK:          ledgerPK(activityID),
		SK:          ledgerSK(visitorID),
		FirstSeenAt: now.UTC().Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, fmt.Errorf("marshaling ledger item: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Entry already exists; the visitor is a repeat.
			return false, nil
		}
		return false, fmt.Errorf("putting ledger item: %w", err)
	}
	return true, nil
}

// PurgeActivity removes every ledger entry for an activity, in batches of
// 25 (the BatchWriteItem limit).
func (l *Ledger) PurgeActivity(ctx context.Context, activityID string) error {
	pk := ledgerPK(activityID)

	var startKey map[string]types.AttributeValue
	for {
		out, err := l.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(l.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
			},
			ProjectionExpression: aws.String("PK, SK"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return fmt.Errorf("querying ledger entries: %w", err)
		}

		for start := 0; start < len(out.Items); start += 25 {
			end := start + 25
			if end > len(out.Items) {
				end = len(out.Items)
			}
			requests := make([]types.WriteRequest, 0, end-start)
			for _, item := range out.Items[start:end] {
				requests = append(requests, types.WriteRequest{
					DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
						"PK": item["PK"],
						"SK": item["SK"],
					}},
				})
			}
			_, err := l.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{l.tableName: requests},
			})
			if err != nil {
				return fmt.Errorf("deleting ledger entries: %w", err)
			}
		}

		if out.LastEvaluatedKey == nil {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}
