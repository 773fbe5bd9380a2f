package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"mystery-message/internal/domain"
)

const (
	pkPrefixUser = "USER#"
	skPrefixMsg  = "MSG#"
	skProfile    = "PROFILE"

	conditionAccepting = "attribute_exists(PK) AND (attribute_not_exists(isAcceptingMessages) OR isAcceptingMessages = :accepting)"
	conditionNew       = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
)

var (
	// ErrRecipientNotFound is returned when no profile exists for a username.
	ErrRecipientNotFound = errors.New("repository: recipient not found")
	// ErrNotAcceptingMessages is returned when the profile condition fails at write time.
	ErrNotAcceptingMessages = errors.New("repository: recipient is not accepting messages")
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding recipient profiles and their messages.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// userPK returns the partition key shared by a recipient's profile and messages.
func userPK(username string) string {
	return pkPrefixUser + username
}

// msgSK orders messages chronologically; the id keeps concurrent sends unique.
func msgSK(ts time.Time, id string) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

// GetRecipient reads the profile record for username.
func (c *Client) GetRecipient(ctx context.Context, username string) (domain.Recipient, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(username)},
			"SK": &types.AttributeValueMemberS{Value: skProfile},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("repository: GetRecipient get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Recipient{}, ErrRecipientNotFound
	}

	name, err := strAttr(out.Item, "username")
	if err != nil {
		name = username
	}
	accepting, err := boolAttr(out.Item, "isAcceptingMessages")
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("repository: GetRecipient decode: %w", err)
	}
	return domain.Recipient{Username: name, AcceptingMessages: accepting}, nil
}

// SaveMessage writes msg in a transaction that also asserts the recipient
// profile still exists and accepts messages.
func (c *Client) SaveMessage(ctx context.Context, msg domain.Message) error {
	if msg.PK == "" || msg.SK == "" {
		return errors.New("repository: SaveMessage: PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				ConditionCheck: &types.ConditionCheck{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: msg.PK},
						"SK": &types.AttributeValueMemberS{Value: skProfile},
					},
					ConditionExpression: aws.String(conditionAccepting),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":accepting": &types.AttributeValueMemberBOOL{Value: true},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(msg),
					ConditionExpression: aws.String(conditionNew),
				},
			},
		},
	})
	if err != nil {
		if profileCheckFailed(err) {
			return ErrNotAcceptingMessages
		}
		return fmt.Errorf("repository: SaveMessage: %w", err)
	}
	return nil
}

// NewMessage constructs a Message with keys, id and timestamp set.
func NewMessage(username, content string) domain.Message {
	now := time.Now().UTC()
	id := uuid.NewString()
	return domain.Message{
		PK:        userPK(username),
		SK:        msgSK(now, id),
		ID:        id,
		Username:  username,
		Content:   content,
		CreatedAt: now.Format(time.RFC3339),
	}
}

// profileCheckFailed reports whether the first transaction item, the profile
// condition check, is what cancelled the write.
func profileCheckFailed(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) || len(canceled.CancellationReasons) == 0 {
		return false
	}
	code := canceled.CancellationReasons[0].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: msg.PK},
		"SK":        &types.AttributeValueMemberS{Value: msg.SK},
		"id":        &types.AttributeValueMemberS{Value: msg.ID},
		"username":  &types.AttributeValueMemberS{Value: msg.Username},
		"content":   &types.AttributeValueMemberS{Value: msg.Content},
		"createdAt": &types.AttributeValueMemberS{Value: msg.CreatedAt},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		// Profiles created before the flag existed accept messages.
		return true, nil
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a bool", key)
	}
	return b.Value, nil
}
