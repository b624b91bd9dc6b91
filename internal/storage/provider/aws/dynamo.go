package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
)

// DynamoDBAPI defines the interface for DynamoDB operations we use
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps secrets in a table whose partition key is the string
// attribute "id".
type DynamoStore struct {
	client DynamoDBAPI
	table  string
}

func NewDynamoStore(ctx context.Context, region, table string) (*DynamoStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &DynamoStore{
		client: dynamodb.NewFromConfig(cfg),
		table:  table,
	}, nil
}

func (d *DynamoStore) key(id string) map[string]dynamotypes.AttributeValue {
	return map[string]dynamotypes.AttributeValue{
		"id": &dynamotypes.AttributeValueMemberS{Value: id},
	}
}

func (d *DynamoStore) Write(ctx context.Context, secret *storagetypes.Secret) error {
	item := map[string]dynamotypes.AttributeValue{
		"id":               &dynamotypes.AttributeValueMemberS{Value: secret.ID},
		"created_at":       &dynamotypes.AttributeValueMemberS{Value: secret.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"encrypted_secret": &dynamotypes.AttributeValueMemberS{Value: secret.EncryptedSecret},
	}

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})

	var conditionFailed *dynamotypes.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return storagetypes.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	return nil
}

func stringAttr(item map[string]dynamotypes.AttributeValue, name string) (string, error) {
	v, ok := item[name].(*dynamotypes.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("%s field not found", name)
	}
	return v.Value, nil
}

func (d *DynamoStore) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	secret := &storagetypes.Secret{ID: id}
	if secret.EncryptedSecret, err = stringAttr(result.Item, "encrypted_secret"); err != nil {
		return nil, err
	}
	createdAt, err := stringAttr(result.Item, "created_at")
	if err != nil {
		return nil, err
	}
	if secret.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}

	return secret, nil
}

func (d *DynamoStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(d.table),
		Key:          d.key(id),
		ReturnValues: dynamotypes.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete secret: %w", err)
	}

	return len(result.Attributes) > 0, nil
}
