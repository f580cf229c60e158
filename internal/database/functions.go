package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrItemNotFound = errors.New("item not found")

const scanAllPageSize = 100

type Key = map[string]types.AttributeValue

// Update describes a single UpdateItem call. When Condition is set and does
// not hold, UpdateItem returns ErrItemNotFound.
type Update struct {
	Key        Key
	Expression string
	Condition  string
	Values     map[string]types.AttributeValue
	Names      map[string]string
}

type ScanPage struct {
	Items   []map[string]types.AttributeValue
	NextKey Key
}

func (p *ScanPage) HasMore() bool {
	return p.NextKey != nil
}

func AttrString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

func (c *DynamoDBClient) PutItem(ctx context.Context, table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	if _, err := c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put item %s: %w", table, err)
	}
	return nil
}

func (c *DynamoDBClient) GetItem(ctx context.Context, table string, key Key, out any) error {
	res, err := c.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("get item %s: %w", table, err)
	}
	if res.Item == nil {
		return fmt.Errorf("%w in %s", ErrItemNotFound, table)
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

// UpdateItem applies u and, if out is non-nil, decodes the updated item into it.
func (c *DynamoDBClient) UpdateItem(ctx context.Context, table string, u Update, out any) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       u.Key,
		UpdateExpression:          aws.String(u.Expression),
		ExpressionAttributeValues: u.Values,
		ExpressionAttributeNames:  u.Names,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if u.Condition != "" {
		input.ConditionExpression = aws.String(u.Condition)
	}

	res, err := c.svc.UpdateItem(ctx, input)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w in %s", ErrItemNotFound, table)
		}
		return fmt.Errorf("update item %s: %w", table, err)
	}

	if out == nil {
		return nil
	}
	if err := attributevalue.UnmarshalMap(res.Attributes, out); err != nil {
		return fmt.Errorf("unmarshal updated item: %w", err)
	}
	return nil
}

// Scan reads one page of table starting after startKey. Page sizes outside
// 1..100 fall back to 20.
func (c *DynamoDBClient) Scan(ctx context.Context, table string, pageSize int, startKey Key) (*ScanPage, error) {
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	res, err := c.svc.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(table),
		Limit:             aws.Int32(int32(pageSize)),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return &ScanPage{Items: res.Items, NextKey: res.LastEvaluatedKey}, nil
}

// ScanAll follows pagination until the whole table has been read.
func (c *DynamoDBClient) ScanAll(ctx context.Context, table string) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		next  Key
	)
	for {
		page, err := c.Scan(ctx, table, scanAllPageSize, next)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if !page.HasMore() {
			return items, nil
		}
		next = page.NextKey
	}
}

// EnsureTable creates table with a single string hash key unless it already
// exists. Meant for local DynamoDB; production tables are provisioned
// separately.
func (c *DynamoDBClient) EnsureTable(ctx context.Context, table, hashKey string) error {
	_, err := c.svc.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	_, err = c.svc.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}
