package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/models"
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB
type DynamoDBStorage struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// NewDynamoDBStorage opens a session and makes sure the runs table exists
func NewDynamoDBStorage(ctx context.Context, cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := &DynamoDBStorage{
		client:    dynamodb.New(sess),
		tableName: cfg.TableName,
	}

	if err := storage.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return storage, nil
}

// ensureTable creates the runs table, keyed by run ID, when DescribeTable reports it missing
func (d *DynamoDBStorage) ensureTable(ctx context.Context) error {
	describe := &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)}
	_, err := d.client.DescribeTableWithContext(ctx, describe)
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != dynamodb.ErrCodeResourceNotFoundException {
		return fmt.Errorf("failed to describe table %s: %w", d.tableName, err)
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	}

	if _, err := d.client.CreateTableWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.tableName, err)
	}
	return d.client.WaitUntilTableExistsWithContext(ctx, describe)
}

// SaveRun writes a run report, replacing any report with the same ID
func (d *DynamoDBStorage) SaveRun(ctx context.Context, report models.SyncReport) error {
	item, err := dynamodbattribute.MarshalMap(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", report.ID, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", report.ID, err)
	}
	return nil
}

// GetRuns scans the table and returns the newest runs first
func (d *DynamoDBStorage) GetRuns(ctx context.Context, limit int) ([]models.SyncReport, error) {
	var runs []models.SyncReport
	var decodeErr error
	input := &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}

	err := d.client.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var batch []models.SyncReport
		if decodeErr = dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); decodeErr != nil {
			return false
		}
		runs = append(runs, batch...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to unmarshal runs: %w", decodeErr)
	}

	return sortNewestFirst(runs, limit), nil
}

// GetRunByID retrieves a specific run
func (d *DynamoDBStorage) GetRunByID(ctx context.Context, id string) (*models.SyncReport, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(id),
			},
		},
	}

	result, err := d.client.GetItemWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	if result.Item == nil {
		return nil, apperrors.ErrRunNotFound
	}

	var report models.SyncReport
	if err := dynamodbattribute.UnmarshalMap(result.Item, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &report, nil
}

// GetLatestRun returns the most recently started run
func (d *DynamoDBStorage) GetLatestRun(ctx context.Context) (*models.SyncReport, error) {
	runs, err := d.GetRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, apperrors.ErrRunNotFound
	}
	return &runs[0], nil
}

// Close is a no-op; the SDK client holds no connection to release
func (d *DynamoDBStorage) Close() error {
	return nil
}
