package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/strata/internal/shard"
	"github.com/jacentio/strata/store"
)

// BatchMutate issues one UpdateItem per row and family. Rows are spread
// over WriteWorkers by key hash; each row is written by a single worker.
func (c *Client) BatchMutate(ctx context.Context, mutations store.MutationMap) error {
	keys := make([]string, 0, len(mutations))
	for k := range mutations {
		keys = append(keys, k)
	}
	groups := shard.Partition(keys, c.cfg.WriteWorkers)

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		g.Go(func() error {
			for _, k := range group {
				fams := mutations[k]
				families := make([]string, 0, len(fams))
				for f := range fams {
					families = append(families, f)
				}
				sort.Strings(families)
				for _, f := range families {
					if err := c.update(gctx, f, []byte(k), fams[f]); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.logger().Debug("batch mutate",
		zap.Int("rows", len(keys)),
		zap.Int("workers", len(groups)),
	)
	return nil
}

// update applies one row's columns: SET for values, REMOVE for nil. An item
// left with only its key is deleted so the row stops existing.
func (c *Client) update(ctx context.Context, family string, rowKey []byte, cols map[string][]byte) error {
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, 0, len(cols))
	for n := range cols {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		en     exprNames
		set    []string
		remove []string
		values = make(map[string]types.AttributeValue)
	)
	for _, n := range names {
		ref := en.ref(encodeName(n))
		v := cols[n]
		if v == nil {
			remove = append(remove, ref)
			continue
		}
		placeholder := fmt.Sprintf(":v%d", len(values))
		values[placeholder] = &types.AttributeValueMemberB{Value: v}
		set = append(set, ref+" = "+placeholder)
	}

	var clauses []string
	if len(set) > 0 {
		clauses = append(clauses, "SET "+strings.Join(set, ", "))
	}
	if len(remove) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(remove, ", "))
	}

	table := c.Table(family)
	in := &dynamodb.UpdateItemInput{
		TableName:                aws.String(table),
		Key:                      key(rowKey),
		UpdateExpression:         aws.String(strings.Join(clauses, " ")),
		ExpressionAttributeNames: en.attributeNames(),
	}
	if len(values) > 0 {
		in.ExpressionAttributeValues = values
	}
	if len(set) == 0 {
		in.ReturnValues = types.ReturnValueAllNew
	}

	out, err := c.api.UpdateItem(ctx, in)
	if err != nil {
		return fmt.Errorf("update item %s: %w", table, err)
	}
	if len(set) == 0 && len(out.Attributes) <= 1 {
		return c.delete(ctx, table, rowKey)
	}
	return nil
}

// Remove deletes a row with DeleteItem.
func (c *Client) Remove(ctx context.Context, family string, rowKey []byte) error {
	return c.delete(ctx, c.Table(family), rowKey)
}

func (c *Client) delete(ctx context.Context, table string, rowKey []byte) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       key(rowKey),
	})
	if err != nil {
		return fmt.Errorf("delete item %s: %w", table, err)
	}
	return nil
}
