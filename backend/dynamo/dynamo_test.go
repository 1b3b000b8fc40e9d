package dynamo_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/carte/backend/dynamo"
	"github.com/jacentio/carte/store"
)

// --- Fake DynamoDB ---

// fakeClient keeps tables in memory and understands the two condition
// expressions the backend issues. Scan returns pages of two items.
type fakeClient struct {
	tables map[string][]map[string]types.AttributeValue
	scans  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{tables: make(map[string][]map[string]types.AttributeValue)}
}

func idOf(item map[string]types.AttributeValue) string {
	if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeClient) find(table, id string) int {
	for i, it := range f.tables[table] {
		if idOf(it) == id {
			return i
		}
	}
	return -1
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	i := f.find(*in.TableName, idOf(in.Key))
	if i < 0 {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: f.tables[*in.TableName][i]}, nil
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	table := *in.TableName
	i := f.find(table, idOf(in.Item))
	cond := aws.ToString(in.ConditionExpression)
	switch {
	case cond == "attribute_not_exists(id)" && i >= 0,
		cond == "attribute_exists(id)" && i < 0:
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	if i >= 0 {
		f.tables[table][i] = in.Item
	} else {
		f.tables[table] = append(f.tables[table], in.Item)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	table := *in.TableName
	if i := f.find(table, idOf(in.Key)); i >= 0 {
		f.tables[table] = append(f.tables[table][:i], f.tables[table][i+1:]...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans++
	items := f.tables[*in.TableName]
	start := 0
	if in.ExclusiveStartKey != nil {
		start = f.find(*in.TableName, idOf(in.ExclusiveStartKey)) + 1
	}
	end := start + 2
	if end > len(items) {
		end = len(items)
	}
	out := &dynamodb.ScanOutput{Items: items[start:end]}
	if end < len(items) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: idOf(items[end-1])},
		}
	}
	return out, nil
}

func record(t *testing.T, kind store.Kind, id, parent, fields string) *store.Record {
	t.Helper()
	f, err := store.ParseFields([]byte(fields))
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	return &store.Record{Kind: kind, ID: id, ParentID: parent, Fields: f}
}

// --- Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	if cfg.TablePrefix != "carte_" {
		t.Errorf("expected TablePrefix 'carte_', got %q", cfg.TablePrefix)
	}

	tests := []struct {
		kind store.Kind
		want string
	}{
		{store.KindMenu, "carte_menus"},
		{store.KindCategory, "carte_categories"},
		{store.KindDish, "carte_dishes"},
	}
	for _, tt := range tests {
		if got := cfg.TableName(tt.kind); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestBackend_UnknownKind(t *testing.T) {
	b := dynamo.New(newFakeClient(), dynamo.Config{})
	if b.Collection(store.Kind("order")) != nil {
		t.Error("expected nil collection for unknown kind")
	}
}

func TestTable_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	coll := dynamo.New(client, dynamo.Config{}).Collection(store.KindCategory)

	rec := record(t, store.KindCategory, "c1", "m1", `{"name":"Soups","price":4.5,"tags":["hot"]}`)
	if err := coll.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stored := client.tables["carte_categories"][0]
	if v, ok := stored["parent_id"].(*types.AttributeValueMemberS); !ok || v.Value != "m1" {
		t.Errorf("expected parent_id attribute 'm1', got %#v", stored["parent_id"])
	}

	got, err := coll.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	out, _ := json.Marshal(got)
	if string(out) != `{"id":"c1","menuId":"m1","name":"Soups","price":4.5,"tags":["hot"]}` {
		t.Errorf("unexpected record %s", out)
	}
}

func TestTable_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	coll := dynamo.New(newFakeClient(), dynamo.Config{}).Collection(store.KindMenu)

	if err := coll.Insert(ctx, record(t, store.KindMenu, "m1", "", `{}`)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := coll.Insert(ctx, record(t, store.KindMenu, "m1", "", `{}`))
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTable_GetMissing(t *testing.T) {
	coll := dynamo.New(newFakeClient(), dynamo.Config{}).Collection(store.KindDish)
	_, err := coll.Get(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTable_ReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	coll := dynamo.New(newFakeClient(), dynamo.Config{}).Collection(store.KindMenu)

	err := coll.Replace(ctx, record(t, store.KindMenu, "m1", "", `{}`))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound replacing missing item, got %v", err)
	}

	_ = coll.Insert(ctx, record(t, store.KindMenu, "m1", "", `{"title":"a"}`))
	if err := coll.Replace(ctx, record(t, store.KindMenu, "m1", "", `{"title":"b"}`)); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, _ := coll.Get(ctx, "m1")
	if v, _ := got.Fields.Get("title"); string(v) != `"b"` {
		t.Errorf("expected title b, got %s", v)
	}

	if err := coll.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := coll.Delete(ctx, "m1"); err != nil {
		t.Errorf("expected deleting twice to succeed, got %v", err)
	}
}

func TestTable_ListPaginates(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	coll := dynamo.New(client, dynamo.Config{TablePrefix: "test_"}).Collection(store.KindDish)

	for i := 0; i < 5; i++ {
		if err := coll.Insert(ctx, record(t, store.KindDish, fmt.Sprintf("d%d", i), "c1", `{}`)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	recs, err := coll.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 5 {
		t.Errorf("expected 5 records, got %d", len(recs))
	}
	if client.scans != 3 {
		t.Errorf("expected 3 scan pages, got %d", client.scans)
	}
}

func TestBackend_WithStoreCascade(t *testing.T) {
	ctx := context.Background()
	s := store.New(dynamo.New(newFakeClient(), dynamo.DefaultConfig()), store.DefaultConfig())

	m, err := s.Create(ctx, store.KindMenu, store.NewFields())
	if err != nil {
		t.Fatalf("Create menu: %v", err)
	}
	body := store.NewFields()
	_ = body.SetValue("menuId", m.ID)
	c, err := s.Create(ctx, store.KindCategory, body)
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}
	body = store.NewFields()
	_ = body.SetValue("categoryId", c.ID)
	if _, err := s.Create(ctx, store.KindDish, body); err != nil {
		t.Fatalf("Create dish: %v", err)
	}

	plan, err := s.Delete(ctx, store.KindMenu, m.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if plan.Total() != 3 {
		t.Errorf("expected 3 removals, got %d", plan.Total())
	}

	dishes, err := s.List(ctx, store.KindDish)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dishes) != 0 {
		t.Errorf("expected no dishes, got %d", len(dishes))
	}
}
