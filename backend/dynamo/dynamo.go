// Package dynamo stores menu collections in DynamoDB, one table per kind.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/carte/store"
)

// Client is the subset of the DynamoDB API used by the backend.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	dynamodb.ScanAPIClient
}

// Config holds configuration for the Backend.
type Config struct {
	// TablePrefix is prepended to the collection name of each kind.
	// Default: "carte_" (tables carte_menus, carte_categories, carte_dishes)
	TablePrefix string
}

// DefaultConfig returns the default table naming.
func DefaultConfig() Config {
	return Config{TablePrefix: "carte_"}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "carte_"
	}
}

// TableName returns the table holding records of kind.
func (c Config) TableName(kind store.Kind) string {
	return c.TablePrefix + kind.Plural()
}

// Backend implements store.Backend on DynamoDB.
type Backend struct {
	client Client
	config Config
}

// New creates a new Backend instance.
func New(client Client, config Config) *Backend {
	config.validate()
	return &Backend{client: client, config: config}
}

// Collection returns the table-backed collection for kind.
func (b *Backend) Collection(kind store.Kind) store.Collection {
	if !kind.Valid() {
		return nil
	}
	return &table{
		client: b.client,
		kind:   kind,
		name:   b.config.TableName(kind),
	}
}

// item is the stored shape of a record. Fields are kept as one JSON document
// so that attribute order and JSON types round-trip exactly.
type item struct {
	ID       string `dynamodbav:"id"`
	ParentID string `dynamodbav:"parent_id,omitempty"`
	Fields   string `dynamodbav:"fields"`
}

func toItem(rec *store.Record) (map[string]types.AttributeValue, error) {
	fields, err := rec.Fields.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	av, err := attributevalue.MarshalMap(item{
		ID:       rec.ID,
		ParentID: rec.ParentID,
		Fields:   string(fields),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return av, nil
}

func fromItem(kind store.Kind, raw map[string]types.AttributeValue) (*store.Record, error) {
	var it item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	fields := store.NewFields()
	if it.Fields != "" {
		if err := fields.UnmarshalJSON([]byte(it.Fields)); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", it.ID, err)
		}
	}
	return &store.Record{
		Kind:     kind,
		ID:       it.ID,
		ParentID: it.ParentID,
		Fields:   fields,
	}, nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// table is one kind's collection.
type table struct {
	client Client
	kind   store.Kind
	name   string
}

func (t *table) Insert(ctx context.Context, rec *store.Record) error {
	av, err := toItem(rec)
	if err != nil {
		return err
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.name),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return store.ErrDuplicateKey
	}
	return err
}

func (t *table) Get(ctx context.Context, id string) (*store.Record, error) {
	result, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, &store.NotFoundError{Kind: t.kind, ID: id}
	}
	return fromItem(t.kind, result.Item)
}

func (t *table) List(ctx context.Context) ([]*store.Record, error) {
	recs := []*store.Record{}
	paginator := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{
		TableName:      aws.String(t.name),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			rec, err := fromItem(t.kind, raw)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (t *table) Delete(ctx context.Context, id string) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       key(id),
	})
	return err
}

func (t *table) Replace(ctx context.Context, rec *store.Record) error {
	av, err := toItem(rec)
	if err != nil {
		return err
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.name),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return &store.NotFoundError{Kind: t.kind, ID: rec.ID}
	}
	return err
}

// TableAdmin is the subset of the DynamoDB API needed to provision tables.
type TableAdmin interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// CreateTables creates any missing table (hash key "id", pay-per-request) and
// waits until every table is active.
func CreateTables(ctx context.Context, client TableAdmin, config Config, maxWait time.Duration) error {
	config.validate()
	for _, kind := range store.Kinds() {
		name := config.TableName(kind)
		_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	for _, kind := range store.Kinds() {
		name := config.TableName(kind)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		}, maxWait); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
	}
	return nil
}
