// Package stream decodes DynamoDB Streams records written by the dynamo
// adapter back into model instances.
package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/jacentio/strata/dynamo"
	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

// Kind is the type of change in a stream record.
type Kind uint8

const (
	Insert Kind = iota + 1
	Modify
	Remove
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Modify:
		return "modify"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Change is one decoded stream record. Old and New hold the row before and
// after the change: one instance for a row-keyed model, one per cell for a
// column-keyed model. Either is empty when the image is absent.
type Change struct {
	Kind    Kind
	EventID string
	Schema  *model.Schema
	Key     []byte
	Old     []*model.Instance
	New     []*model.Instance
}

// ChangeFunc consumes a decoded change.
type ChangeFunc func(ctx context.Context, c Change) error

// Handler turns DynamoDB stream events into Change values.
type Handler struct {
	prefix  string
	schemas map[string]*model.Schema
	fn      ChangeFunc
	logger  *zap.Logger
}

// NewHandler creates a handler for tables named tablePrefix+family.
func NewHandler(tablePrefix string, fn ChangeFunc, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		prefix:  tablePrefix,
		schemas: make(map[string]*model.Schema),
		fn:      fn,
		logger:  logger,
	}
}

// Register routes records of each schema's table to it.
func (h *Handler) Register(schemas ...*model.Schema) {
	for _, s := range schemas {
		h.schemas[h.prefix+s.Family()] = s
	}
}

// Handle processes a batch of records in order. It stops at the first
// failure so Lambda retries the batch.
func (h *Handler) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				zap.String("eventID", record.EventID),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	table := tableName(record.EventSourceArn)
	s, ok := h.schemas[table]
	if !ok {
		h.logger.Debug("skipping record of unregistered table",
			zap.String("eventID", record.EventID),
			zap.String("table", table),
		)
		return nil
	}

	c, err := Decode(s, record)
	if err != nil {
		return err
	}
	if h.fn == nil {
		return nil
	}
	return h.fn(ctx, c)
}

// Decode converts one record of s's table into a Change.
func Decode(s *model.Schema, record events.DynamoDBEventRecord) (Change, error) {
	c := Change{EventID: record.EventID, Schema: s}
	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert:
		c.Kind = Insert
	case events.DynamoDBOperationTypeModify:
		c.Kind = Modify
	case events.DynamoDBOperationTypeRemove:
		c.Kind = Remove
	default:
		return c, fmt.Errorf("stream: unknown event %q", record.EventName)
	}

	if k, ok := record.Change.Keys[dynamo.KeyAttribute]; ok && k.DataType() == events.DataTypeBinary {
		c.Key = k.Binary()
	}

	var err error
	if c.Old, err = decodeImage(s, c.Key, record.Change.OldImage); err != nil {
		return c, fmt.Errorf("stream: old image: %w", err)
	}
	if c.New, err = decodeImage(s, c.Key, record.Change.NewImage); err != nil {
		return c, fmt.Errorf("stream: new image: %w", err)
	}
	return c, nil
}

func decodeImage(s *model.Schema, key []byte, image map[string]events.DynamoDBAttributeValue) ([]*model.Instance, error) {
	cols, err := columns(image)
	if err != nil || len(cols) == 0 {
		return nil, err
	}
	if s.Strategy() == model.ColumnKeyed {
		return store.DecodeCells(s, key, cols)
	}
	inst, err := store.DecodeRow(s, key, cols)
	if err != nil {
		return nil, err
	}
	return []*model.Instance{inst}, nil
}

// columns extracts the binary columns of an image, sorted by name.
func columns(image map[string]events.DynamoDBAttributeValue) ([]store.Column, error) {
	var cols []store.Column
	for attr, v := range image {
		if attr == dynamo.KeyAttribute || v.DataType() != events.DataTypeBinary {
			continue
		}
		name, err := dynamo.ColumnName(attr)
		if err != nil {
			return nil, err
		}
		cols = append(cols, store.Column{Name: name, Value: v.Binary()})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols, nil
}

// tableName extracts the table from a stream ARN such as
// arn:aws:dynamodb:us-east-1:123456789012:table/widgets/stream/2024-01-01T00:00:00.000.
func tableName(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}
