// Package dynamo implements store.Client over Amazon DynamoDB.
//
// Each column family is one table named TablePrefix+family with a binary
// partition key "pk" holding the row key. Every column is a binary
// attribute; names that are not printable UTF-8 are stored escaped.
//
// Index scans use Scan. EQ clauses are pushed into the filter expression;
// every clause is also evaluated locally with the column's codec, since
// range comparisons depend on the domain ordering rather than raw bytes.
// Register the row-keyed schemas whose families will be scanned.
package dynamo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/strata/codec"
	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

// API is the subset of the DynamoDB client used by Client.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client is a store.Client backed by DynamoDB tables.
type Client struct {
	api API
	cfg Config

	mu     sync.RWMutex
	codecs map[string]map[string]codec.Codec
}

var _ store.Client = (*Client)(nil)

// New creates a Client over api.
func New(api API, cfg Config) *Client {
	cfg.validate()
	return &Client{
		api:    api,
		cfg:    cfg,
		codecs: make(map[string]map[string]codec.Codec),
	}
}

// NewFromAWS loads the default AWS configuration, applying cfg.Region and
// cfg.Endpoint, and creates a Client over it.
func NewFromAWS(ctx context.Context, cfg Config, optFns ...func(*awsconfig.LoadOptions) error) (*Client, error) {
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	api := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(api, cfg), nil
}

// Register records the column codecs of row-keyed schemas so index
// expressions compare in domain order. Columns of unregistered families
// compare as raw bytes.
func (c *Client) Register(schemas ...*model.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sc := range schemas {
		if sc.Strategy() != model.RowKeyed {
			continue
		}
		cs := make(map[string]codec.Codec)
		for _, a := range sc.ValueFields() {
			cs[a.Name()] = a.Codec()
		}
		c.codecs[sc.Family()] = cs
	}
}

func (c *Client) codec(family, column string) codec.Codec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cd, ok := c.codecs[family][column]; ok {
		return cd
	}
	return codec.Bytes{}
}

// Table returns the table name of family.
func (c *Client) Table(family string) string {
	return c.cfg.TablePrefix + family
}

func key(rowKey []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttr: &types.AttributeValueMemberB{Value: rowKey},
	}
}

// GetSlice reads one row with GetItem; nil names reads every column.
func (c *Client) GetSlice(ctx context.Context, family string, rowKey []byte, names []string) ([]store.Column, error) {
	if names != nil && len(names) == 0 {
		return nil, nil
	}
	in := &dynamodb.GetItemInput{
		TableName:      aws.String(c.Table(family)),
		Key:            key(rowKey),
		ConsistentRead: aws.Bool(c.cfg.ConsistentRead),
	}
	if names != nil {
		var en exprNames
		in.ProjectionExpression = aws.String(en.projection(names))
		in.ExpressionAttributeNames = en.attributeNames()
	}

	out, err := c.api.GetItem(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", c.Table(family), err)
	}
	if out.Item == nil {
		return nil, nil
	}
	_, cols, err := decodeItem(out.Item, keepAll)
	return cols, err
}

func keepAll(string) bool { return true }

// decodeItem splits an item into its row key and columns sorted by name.
// Non-binary attributes are not columns and are skipped.
func decodeItem(item map[string]types.AttributeValue, keep func(string) bool) ([]byte, []store.Column, error) {
	var rowKey []byte
	cols := make([]store.Column, 0, len(item))
	for attr, av := range item {
		b, ok := av.(*types.AttributeValueMemberB)
		if !ok {
			continue
		}
		if attr == keyAttr {
			rowKey = b.Value
			continue
		}
		name, err := decodeName(attr)
		if err != nil {
			return nil, nil, err
		}
		if !keep(name) {
			continue
		}
		cols = append(cols, store.Column{Name: name, Value: b.Value})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return rowKey, cols, nil
}

func (c *Client) logger() *zap.Logger { return c.cfg.Logger }
