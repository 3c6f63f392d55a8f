//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
//
// Credentials and region come from the default AWS chain; set
// STRATA_E2E_PROFILE to use a shared config profile and
// STRATA_DYNAMO_ENDPOINT to target DynamoDB Local.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jacentio/strata/dynamo"
	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

var (
	testID      string
	tablePrefix string

	ddbClient *dynamodb.Client
	api       *countingAPI
	client    *dynamo.Client
)

// --- Test Models ---

var (
	widgetSchema = model.MustSchema(model.Definition{
		Name:   "widget",
		Family: "widgets",
		Fields: []model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("name", model.String(model.With(model.Required))),
			model.F("rank", model.Int64(model.With(model.Indexed))),
		},
	})

	invoiceSchema = model.MustSchema(model.Definition{
		Name:   "invoice",
		Family: "invoices",
		Fields: []model.Field{
			model.F("id", model.UUID(model.With(model.RowKey))),
			model.F("customer_id", model.ForeignKey("customer")),
			model.F("number", model.Int64()),
		},
	})

	readingSchema = model.MustSchema(model.Definition{
		Name:     "reading",
		Family:   "readings",
		Strategy: model.ColumnKeyed,
		Fields: []model.Field{
			model.F("sensor", model.UUID(model.With(model.RowKey))),
			model.F("id", model.UUID(model.With(model.ColumnKey))),
			model.F("value", model.Int64()),
		},
	})

	families = []string{"widgets", "invoices", "readings"}
)

// countingAPI counts writes so tests can assert none were issued.
type countingAPI struct {
	dynamo.API
	updates atomic.Int64
}

func (c *countingAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.updates.Add(1)
	return c.API.UpdateItem(ctx, in, optFns...)
}

// --- Setup ---

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	tablePrefix = fmt.Sprintf("strata-e2e-%s-", testID)

	v := viper.New()
	v.Set("table_prefix", tablePrefix)
	cfg := dynamo.LoadConfig(v)
	logger, _ := zap.NewDevelopment()
	cfg.Logger = logger

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Table prefix: %s\n", tablePrefix)

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if p := os.Getenv("STRATA_E2E_PROFILE"); p != "" {
		opts = append(opts, config.WithSharedConfigProfile(p))
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	if err := createTables(ctx); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		os.Exit(1)
	}

	api = &countingAPI{API: ddbClient}
	client = dynamo.New(api, cfg)
	client.Register(widgetSchema, invoiceSchema)

	code := m.Run()

	if err := deleteTables(ctx); err != nil {
		fmt.Printf("Failed to delete tables: %v\n", err)
	}

	os.Exit(code)
}

func createTables(ctx context.Context) error {
	fmt.Println("Creating test tables...")

	for _, family := range families {
		_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(tablePrefix + family),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(dynamo.KeyAttribute), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(dynamo.KeyAttribute), AttributeType: types.ScalarAttributeTypeB},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		if err != nil {
			return fmt.Errorf("create table %s: %w", family, err)
		}
	}

	for _, family := range families {
		waiter := dynamodb.NewTableExistsWaiter(ddbClient)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tablePrefix + family),
		}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", family, err)
		}
	}

	fmt.Println("All tables created and active")
	return nil
}

func deleteTables(ctx context.Context) error {
	fmt.Println("Deleting test tables...")

	for _, family := range families {
		_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(tablePrefix + family),
		})
		if err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", family, err)
		}
	}

	fmt.Println("Tables deleted")
	return nil
}

func rowStore(t *testing.T, s *model.Schema) *store.RowStore {
	t.Helper()
	rs, err := store.NewRowStore(client, s, store.DefaultConfig())
	if err != nil {
		t.Fatalf("NewRowStore: %v", err)
	}
	return rs
}

func ranks(t *testing.T, res *store.Result) []int64 {
	t.Helper()
	out := make([]int64, 0, res.Len())
	for _, w := range res.All() {
		r, ok := model.ValueOf[int64](w, "rank")
		if !ok {
			t.Fatalf("widget without rank: %v", w)
		}
		out = append(out, r)
	}
	return out
}

// --- Scenarios ---

func TestSortedPage(t *testing.T) {
	ctx := context.Background()
	widgets := rowStore(t, widgetSchema)

	for i := 0; i < 50; i++ {
		w := widgetSchema.MustNew(map[string]any{"name": fmt.Sprintf("w%02d", i), "rank": i})
		if err := widgets.Save(ctx, w); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	res, err := widgets.Execute(ctx, widgets.Query().Sort("rank").Offset(10).Limit(10))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Total() != 50 {
		t.Errorf("expected total 50, got %d", res.Total())
	}
	got := ranks(t, res)
	for i, r := range got {
		if r != int64(10+i) {
			t.Fatalf("expected ranks 10..19, got %v", got)
		}
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 results, got %d", len(got))
	}

	res, err = widgets.Execute(ctx, widgets.Query().Where("rank", model.GTE, 45).Sort("-rank").Limit(3))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := ranks(t, res); fmt.Sprint(got) != "[49 48 47]" || res.Total() != 5 {
		t.Errorf("expected [49 48 47] of 5, got %v of %d", got, res.Total())
	}
}

func TestRequiredForeignKey(t *testing.T) {
	ctx := context.Background()
	invoices := rowStore(t, invoiceSchema)

	before := api.updates.Load()
	inv := invoiceSchema.MustNew(map[string]any{"number": 1})
	err := invoices.Save(ctx, inv)
	if !errors.Is(err, model.ErrRequired) {
		t.Fatalf("expected ErrRequired, got %v", err)
	}
	if n := api.updates.Load() - before; n != 0 {
		t.Errorf("expected no writes, got %d", n)
	}
}

func TestCompositeKey(t *testing.T) {
	ctx := context.Background()
	readings, err := store.NewColumnStore(client, readingSchema, store.DefaultConfig())
	if err != nil {
		t.Fatalf("NewColumnStore: %v", err)
	}

	sensor := uuid.New()
	c1 := readingSchema.MustNew(map[string]any{"sensor": sensor, "value": 1})
	c2 := readingSchema.MustNew(map[string]any{"sensor": sensor, "value": 2})
	for _, c := range []*model.Instance{c1, c2} {
		if err := readings.Save(ctx, c); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	cells, err := readings.Get(ctx, sensor)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(cells))
	}

	cell, err := readings.GetCell(ctx, sensor, c1.Value("id"))
	if err != nil {
		t.Fatalf("GetCell: %v", err)
	}
	if cell == nil || cell.Value("value") != int64(1) {
		t.Errorf("expected cell with value 1, got %v", cell)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	widgets := rowStore(t, widgetSchema)

	w := widgetSchema.MustNew(map[string]any{"name": "doomed", "rank": 1000})
	if err := widgets.Save(ctx, w); err != nil {
		t.Fatalf("save: %v", err)
	}
	id := w.Value("id")

	deleted, err := widgets.Delete(ctx, w)
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v, %v", deleted, err)
	}

	got, err := widgets.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected deleted widget to be gone, got %v", got)
	}
}
