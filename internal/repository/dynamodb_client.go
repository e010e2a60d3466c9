package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pkPrefixMsg = "MSG#"
	skDelivery  = "DELIVERY#"
	ttlDuration = 7 * 24 * time.Hour // WhatsApp stops redelivering well before this
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client records processed webhook message IDs in a DynamoDB table so a
// message redelivered by the provider, possibly to another Lambda instance,
// is answered once. Items expire through the table's TTL attribute.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// msgPK returns the partition key for a provider message ID.
func msgPK(messageID string) string {
	return pkPrefixMsg + messageID
}

// MarkProcessed claims messageID. It reports true when this call recorded the
// ID and false when it was already present.
func (c *Client) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	if strings.TrimSpace(messageID) == "" {
		return false, errors.New("repository: MarkProcessed: message id is required")
	}
	now := c.now().UTC()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                deliveryItem(messageID, now),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return false, fmt.Errorf("repository: MarkProcessed: %w", err)
	}
	return true, nil
}

func deliveryItem(messageID string, now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: msgPK(messageID)},
		"SK":          &types.AttributeValueMemberS{Value: skDelivery},
		"messageId":   &types.AttributeValueMemberS{Value: messageID},
		"processedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttlDuration).Unix(), 10)},
	}
}
