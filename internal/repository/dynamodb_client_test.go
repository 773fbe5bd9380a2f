package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"mystery-message/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	txErr        error
	describeOut  *dynamodb.DescribeTableOutput
	describeErr  error
	lastGetInput *dynamodb.GetItemInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
	describes    int
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func (f *fakeDynamo) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.describes++
	return f.describeOut, f.describeErr
}

func makeProfile(username string, accepting *bool) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: userPK(username)},
		"SK":       &types.AttributeValueMemberS{Value: skProfile},
		"username": &types.AttributeValueMemberS{Value: username},
	}
	if accepting != nil {
		item["isAcceptingMessages"] = &types.AttributeValueMemberBOOL{Value: *accepting}
	}
	return item
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	return c
}

func TestGetRecipient_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makeProfile("alice", aws.Bool(true))}}
	c := mustNewClient(t, db)

	r, err := c.GetRecipient(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, domain.Recipient{Username: "alice", AcceptingMessages: true}, r)
	require.Equal(t, "USER#alice", db.lastGetInput.Key["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, skProfile, db.lastGetInput.Key["SK"].(*types.AttributeValueMemberS).Value)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestGetRecipient_NotAccepting(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makeProfile("bob", aws.Bool(false))}}
	c := mustNewClient(t, db)

	r, err := c.GetRecipient(context.Background(), "bob")
	require.NoError(t, err)
	require.False(t, r.AcceptingMessages)
}

func TestGetRecipient_MissingFlagDefaultsToAccepting(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: makeProfile("carol", nil)}}
	c := mustNewClient(t, db)

	r, err := c.GetRecipient(context.Background(), "carol")
	require.NoError(t, err)
	require.True(t, r.AcceptingMessages)
}

func TestGetRecipient_NotFound(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)

	_, err := c.GetRecipient(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestGetRecipient_GetItemError(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom")}
	c := mustNewClient(t, db)

	_, err := c.GetRecipient(context.Background(), "alice")
	require.Error(t, err)
	require.Contains(t, err.Error(), "GetRecipient")
}

func TestGetRecipient_MalformedFlag(t *testing.T) {
	item := makeProfile("alice", nil)
	item["isAcceptingMessages"] = &types.AttributeValueMemberS{Value: "yes"}
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
	c := mustNewClient(t, db)

	_, err := c.GetRecipient(context.Background(), "alice")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a bool")
}

func TestSaveMessage_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	msg := NewMessage("alice", "hello")

	require.NoError(t, c.SaveMessage(context.Background(), msg))
	require.NotNil(t, db.lastTxInput)
	require.Len(t, db.lastTxInput.TransactItems, 2)

	check := db.lastTxInput.TransactItems[0].ConditionCheck
	require.NotNil(t, check)
	require.Equal(t, conditionAccepting, *check.ConditionExpression)
	require.Equal(t, "USER#alice", check.Key["PK"].(*types.AttributeValueMemberS).Value)

	put := db.lastTxInput.TransactItems[1].Put
	require.NotNil(t, put)
	require.Equal(t, conditionNew, *put.ConditionExpression)
	require.Equal(t, "hello", put.Item["content"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, msg.ID, put.Item["id"].(*types.AttributeValueMemberS).Value)
}

func TestSaveMessage_ProfileConditionFailed(t *testing.T) {
	db := &fakeDynamo{txErr: &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		},
	}}
	c := mustNewClient(t, db)

	err := c.SaveMessage(context.Background(), NewMessage("alice", "hello"))
	require.ErrorIs(t, err, ErrNotAcceptingMessages)
}

func TestSaveMessage_OtherCancellation(t *testing.T) {
	db := &fakeDynamo{txErr: &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}}
	c := mustNewClient(t, db)

	err := c.SaveMessage(context.Background(), NewMessage("alice", "hello"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotAcceptingMessages)
	require.Contains(t, err.Error(), "SaveMessage")
}

func TestSaveMessage_DynamoError(t *testing.T) {
	db := &fakeDynamo{txErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)

	err := c.SaveMessage(context.Background(), NewMessage("alice", "hello"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "SaveMessage")
}

func TestSaveMessage_MissingKeys(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})

	err := c.SaveMessage(context.Background(), domain.Message{SK: "MSG#ts"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")

	err = c.SaveMessage(context.Background(), domain.Message{PK: "USER#alice"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNewMessage_Fields(t *testing.T) {
	msg := NewMessage("alice", "What is Go?")
	require.Equal(t, "USER#alice", msg.PK)
	require.True(t, strings.HasPrefix(msg.SK, skPrefixMsg))
	require.True(t, strings.HasSuffix(msg.SK, "#"+msg.ID))
	require.NotEmpty(t, msg.ID)
	require.Equal(t, "alice", msg.Username)
	require.Equal(t, "What is Go?", msg.Content)
	_, err := time.Parse(time.RFC3339, msg.CreatedAt)
	require.NoError(t, err)
}

func TestNewMessage_UniqueSortKeys(t *testing.T) {
	a := NewMessage("alice", "one")
	b := NewMessage("alice", "two")
	require.NotEqual(t, a.SK, b.SK)
}

func TestMsgSK(t *testing.T) {
	ts := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "MSG#2026-02-25T10:00:00Z#abc", msgSK(ts, "abc"))
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
