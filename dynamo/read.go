package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

// maxUnprocessedRetries bounds the BatchGetItem retries of throttled keys.
const maxUnprocessedRetries = 8

var unprocessedBackoff = 25 * time.Millisecond

// MultigetSlice reads rows with BatchGetItem, retrying unprocessed keys.
func (c *Client) MultigetSlice(ctx context.Context, family string, rowKeys [][]byte, names []string, count int) (map[string][]store.Column, error) {
	table := c.Table(family)

	seen := make(map[string]bool, len(rowKeys))
	keys := make([]map[string]types.AttributeValue, 0, len(rowKeys))
	for _, k := range rowKeys {
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		keys = append(keys, key(k))
	}

	chunks := make([][]map[string]types.AttributeValue, 0, len(keys)/c.cfg.BatchGetSize+1)
	for len(keys) > 0 {
		n := min(c.cfg.BatchGetSize, len(keys))
		chunks = append(chunks, keys[:n])
		keys = keys[n:]
	}

	results := make([][]map[string]types.AttributeValue, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			items, err := c.batchGet(gctx, table, chunk, names)
			results[i] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]store.Column, len(seen))
	for _, items := range results {
		for _, item := range items {
			rowKey, cols, err := decodeItem(item, keepAll)
			if err != nil {
				return nil, err
			}
			if count > 0 && len(cols) > count {
				cols = cols[:count]
			}
			out[string(rowKey)] = cols
		}
	}
	c.logger().Debug("multiget",
		zap.String("table", table),
		zap.Int("keys", len(seen)),
		zap.Int("chunks", len(chunks)),
		zap.Int("found", len(out)),
	)
	return out, nil
}

// batchGet reads one chunk, resubmitting unprocessed keys with backoff.
func (c *Client) batchGet(ctx context.Context, table string, keys []map[string]types.AttributeValue, names []string) ([]map[string]types.AttributeValue, error) {
	req := types.KeysAndAttributes{
		Keys:           keys,
		ConsistentRead: aws.Bool(c.cfg.ConsistentRead),
	}
	if names != nil {
		var en exprNames
		req.ProjectionExpression = aws.String(en.projection(names))
		req.ExpressionAttributeNames = en.attributeNames()
	}
	pending := map[string]types.KeysAndAttributes{table: req}

	var items []map[string]types.AttributeValue
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return nil, fmt.Errorf("batch get item %s: %d keys left unprocessed", table, len(pending[table].Keys))
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(unprocessedBackoff << (attempt - 1)):
			}
		}
		out, err := c.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		if err != nil {
			return nil, fmt.Errorf("batch get item %s: %w", table, err)
		}
		items = append(items, out.Responses[table]...)
		pending = out.UnprocessedKeys
	}
	return items, nil
}

// GetIndexedSlices scans a table for rows matching exprs. startKey is
// exclusive.
func (c *Client) GetIndexedSlices(ctx context.Context, family string, exprs []store.IndexExpression, names []string, startKey []byte, count int) ([]store.KeySlice, error) {
	table := c.Table(family)
	in, keep := c.scanInput(table, exprs, names)
	match := c.matcher(family, exprs)

	var (
		out []store.KeySlice
		err error
	)
	if count == 0 && startKey == nil && c.cfg.ScanSegments > 1 {
		out, err = c.parallelScan(ctx, in, keep, match)
	} else {
		if startKey != nil {
			in.ExclusiveStartKey = key(startKey)
		}
		out, err = c.scan(ctx, in, keep, match, count)
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	c.logger().Debug("index scan",
		zap.String("table", table),
		zap.Int("clauses", len(exprs)),
		zap.Int("count", count),
		zap.Int("rows", len(out)),
	)
	return out, nil
}

// scanInput builds the scan request. The projection always carries the
// clause columns so they can be checked locally; keep drops them again
// unless they were asked for.
func (c *Client) scanInput(table string, exprs []store.IndexExpression, names []string) (*dynamodb.ScanInput, func(string) bool) {
	var en exprNames
	in := &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(c.cfg.ConsistentRead),
	}

	var filter string
	values := make(map[string]types.AttributeValue)
	for _, e := range exprs {
		if e.Op != model.EQ {
			continue
		}
		v := fmt.Sprintf(":v%d", len(values))
		values[v] = &types.AttributeValueMemberB{Value: e.Value}
		if filter != "" {
			filter += " AND "
		}
		filter += en.ref(encodeName(e.Column)) + " = " + v
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
		in.ExpressionAttributeValues = values
	}

	keep := keepAll
	if names != nil {
		wanted := make(map[string]bool, len(names))
		cols := append([]string{}, names...)
		for _, n := range names {
			wanted[n] = true
		}
		for _, e := range exprs {
			if !wanted[e.Column] {
				cols = append(cols, e.Column)
			}
		}
		in.ProjectionExpression = aws.String(en.projection(cols))
		keep = func(name string) bool { return wanted[name] }
	}
	in.ExpressionAttributeNames = en.attributeNames()
	return in, keep
}

// matcher evaluates every clause against the decoded columns of an item.
func (c *Client) matcher(family string, exprs []store.IndexExpression) func(map[string]types.AttributeValue) (bool, error) {
	preds := make([]model.Predicate, len(exprs))
	for i, e := range exprs {
		preds[i] = model.Predicate{Field: e.Column, Op: e.Op, Value: e.Value}
	}
	return func(item map[string]types.AttributeValue) (bool, error) {
		if len(preds) == 0 {
			return true, nil
		}
		_, cols, err := decodeItem(item, keepAll)
		if err != nil {
			return false, err
		}
		values := make(map[string][]byte, len(cols))
		for _, col := range cols {
			values[col.Name] = col.Value
		}
		for _, p := range preds {
			if !p.Matches(c.codec(family, p.Field), values[p.Field]) {
				return false, nil
			}
		}
		return true, nil
	}
}

type itemMatcher = func(map[string]types.AttributeValue) (bool, error)

// scan pages sequentially until count rows matched (0 meaning all).
func (c *Client) scan(ctx context.Context, in *dynamodb.ScanInput, keep func(string) bool, match itemMatcher, count int) ([]store.KeySlice, error) {
	var out []store.KeySlice
	p := dynamodb.NewScanPaginator(c.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			ks, ok, err := slice(item, keep, match, in.ProjectionExpression == nil)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			out = append(out, ks)
			if count > 0 && len(out) == count {
				return out, nil
			}
		}
	}
	return out, nil
}

// parallelScan reads all segments concurrently and concatenates them in
// segment order.
func (c *Client) parallelScan(ctx context.Context, in *dynamodb.ScanInput, keep func(string) bool, match itemMatcher) ([]store.KeySlice, error) {
	n := c.cfg.ScanSegments
	segments := make([][]store.KeySlice, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		seg := *in
		seg.Segment = aws.Int32(int32(i))
		seg.TotalSegments = aws.Int32(int32(n))
		g.Go(func() error {
			rows, err := c.scan(gctx, &seg, keep, match, 0)
			segments[i] = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []store.KeySlice
	for _, rows := range segments {
		out = append(out, rows...)
	}
	return out, nil
}

// slice turns a scanned item into a KeySlice. With a full projection, items
// left with only their key hold no columns and are skipped.
func slice(item map[string]types.AttributeValue, keep func(string) bool, match itemMatcher, full bool) (store.KeySlice, bool, error) {
	ok, err := match(item)
	if err != nil || !ok {
		return store.KeySlice{}, false, err
	}
	rowKey, cols, err := decodeItem(item, keep)
	if err != nil {
		return store.KeySlice{}, false, err
	}
	if rowKey == nil || (full && len(cols) == 0) {
		return store.KeySlice{}, false, nil
	}
	return store.KeySlice{Key: rowKey, Columns: cols}, true, nil
}
