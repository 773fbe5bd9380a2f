package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mystery-message/internal/domain"
)

// TableAPI is what a Dialer hands back: the item operations used by Client
// plus DescribeTable for the readiness check. *dynamodb.Client satisfies it.
type TableAPI interface {
	dynamodbAPI
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Dialer establishes a DynamoDB handle.
type Dialer func(ctx context.Context) (TableAPI, error)

// DefaultDialer builds a *dynamodb.Client from cfg. A non-empty endpoint
// overrides the service endpoint, e.g. for DynamoDB Local.
func DefaultDialer(cfg aws.Config, endpoint string) Dialer {
	endpoint = strings.TrimSpace(endpoint)
	return func(context.Context) (TableAPI, error) {
		return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	}
}

// Connector owns the process-wide Client. The first call dials and verifies
// the table; the handle is then reused until the process exits. A failed dial
// is not cached, so the next call tries again.
type Connector struct {
	dial      Dialer
	tableName string

	mu     sync.Mutex
	client *Client
}

// NewConnector creates a Connector. It does not dial.
func NewConnector(dial Dialer, tableName string) (*Connector, error) {
	if dial == nil {
		return nil, errors.New("repository: dialer must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Connector{dial: dial, tableName: tableName}, nil
}

// Client returns the shared Client, connecting on first use.
func (c *Connector) Client(ctx context.Context) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	api, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: dial: %w", err)
	}
	if api == nil {
		return nil, errors.New("repository: dial returned no client")
	}

	out, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.tableName)})
	if err != nil {
		return nil, fmt.Errorf("repository: describe table %q: %w", c.tableName, err)
	}
	if out == nil || out.Table == nil || out.Table.TableStatus != types.TableStatusActive {
		return nil, fmt.Errorf("repository: table %q is not active", c.tableName)
	}

	client, err := New(api, c.tableName)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// connected reports whether the handle has been established.
func (c *Connector) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// GetRecipient delegates to the shared Client.
func (c *Connector) GetRecipient(ctx context.Context, username string) (domain.Recipient, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return domain.Recipient{}, err
	}
	return client.GetRecipient(ctx, username)
}

// SaveMessage delegates to the shared Client.
func (c *Connector) SaveMessage(ctx context.Context, msg domain.Message) error {
	client, err := c.Client(ctx)
	if err != nil {
		return err
	}
	return client.SaveMessage(ctx, msg)
}
