package dynamo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// fakeAPI is an in-memory DynamoDB for testing. Scans return items in key
// order and ignore filter expressions.
type fakeAPI struct {
	mu     sync.Mutex
	tables map[string]map[string]item
	calls  map[string]int

	// scanPage caps items evaluated per Scan page; 0 means one page.
	scanPage int
	// unprocessed is how many BatchGetItem calls leave their last key
	// unprocessed.
	unprocessed int
	fail        map[string]error

	lastScan   *dynamodb.ScanInput
	lastUpdate []*dynamodb.UpdateItemInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tables: make(map[string]map[string]item),
		calls:  make(map[string]int),
		fail:   make(map[string]error),
	}
}

func (f *fakeAPI) enter(op string) error {
	f.calls[op]++
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func pkOf(key item) string {
	return string(key[keyAttr].(*types.AttributeValueMemberB).Value)
}

func copyItem(it item) item {
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func project(it item, expr *string, names map[string]string) item {
	if expr == nil {
		return copyItem(it)
	}
	out := make(item)
	for _, ref := range strings.Split(*expr, ", ") {
		attr := ref
		if n, ok := names[ref]; ok {
			attr = n
		}
		if v, ok := it[attr]; ok {
			out[attr] = v
		}
	}
	return out
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	it, ok := f.tables[*in.TableName][pkOf(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: project(it, in.ProjectionExpression, in.ExpressionAttributeNames)}, nil
}

func (f *fakeAPI) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("BatchGetItem"); err != nil {
		return nil, err
	}
	if len(in.RequestItems) == 0 {
		return nil, errors.New("fake: empty request")
	}
	out := &dynamodb.BatchGetItemOutput{Responses: make(map[string][]item)}
	for table, req := range in.RequestItems {
		if len(req.Keys) > maxBatchGet {
			return nil, errors.New("fake: too many keys")
		}
		keys := req.Keys
		if f.unprocessed > 0 && len(keys) > 1 {
			f.unprocessed--
			rest := req
			rest.Keys = keys[len(keys)-1:]
			out.UnprocessedKeys = map[string]types.KeysAndAttributes{table: rest}
			keys = keys[:len(keys)-1]
		}
		for _, k := range keys {
			if it, ok := f.tables[table][pkOf(k)]; ok {
				out.Responses[table] = append(out.Responses[table], project(it, req.ProjectionExpression, req.ExpressionAttributeNames))
			}
		}
	}
	return out, nil
}

func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Scan"); err != nil {
		return nil, err
	}
	f.lastScan = in

	rows := f.tables[*in.TableName]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if in.TotalSegments != nil {
		var seg []string
		for i, k := range keys {
			if int32(i)%*in.TotalSegments == *in.Segment {
				seg = append(seg, k)
			}
		}
		keys = seg
	}
	if in.ExclusiveStartKey != nil {
		start := pkOf(in.ExclusiveStartKey)
		i := sort.SearchStrings(keys, start)
		if i < len(keys) && keys[i] == start {
			i++
		}
		keys = keys[i:]
	}

	out := &dynamodb.ScanOutput{}
	for i, k := range keys {
		if f.scanPage > 0 && i == f.scanPage {
			out.LastEvaluatedKey = item{keyAttr: &types.AttributeValueMemberB{Value: []byte(keys[i-1])}}
			break
		}
		out.Items = append(out.Items, project(rows[k], in.ProjectionExpression, in.ExpressionAttributeNames))
	}
	return out, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	f.lastUpdate = append(f.lastUpdate, in)

	table := f.tables[*in.TableName]
	if table == nil {
		table = make(map[string]item)
		f.tables[*in.TableName] = table
	}
	pk := pkOf(in.Key)
	it, ok := table[pk]
	if !ok {
		it = copyItem(in.Key)
		table[pk] = it
	}

	expr := *in.UpdateExpression
	if i := strings.Index(expr, "REMOVE "); i >= 0 {
		for _, ref := range strings.Split(expr[i+len("REMOVE "):], ", ") {
			delete(it, in.ExpressionAttributeNames[ref])
		}
		expr = strings.TrimSpace(expr[:i])
	}
	if strings.HasPrefix(expr, "SET ") {
		for _, clause := range strings.Split(expr[len("SET "):], ", ") {
			ref, placeholder, _ := strings.Cut(clause, " = ")
			it[in.ExpressionAttributeNames[ref]] = in.ExpressionAttributeValues[placeholder]
		}
	}

	out := &dynamodb.UpdateItemOutput{}
	if in.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(it)
	}
	return out, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteItem"); err != nil {
		return nil, err
	}
	delete(f.tables[*in.TableName], pkOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}
