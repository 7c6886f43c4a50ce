package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

const (
	archivePK = "AgentID"
	archiveSK = "LogID"
)

// CreateTablesIfNotExist creates the archive table for local development
func CreateTablesIfNotExist(ctx context.Context, client *dynamodb.Client, config DynamoConfig, logger zerolog.Logger) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(config.StatusLogsTable),
	})
	if err == nil {
		logger.Info().Str("table", config.StatusLogsTable).Msg("table already exists")
		return nil
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(config.StatusLogsTable),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String(archivePK), KeyType: dbtypes.KeyTypeHash},
			{AttributeName: aws.String(archiveSK), KeyType: dbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String(archivePK), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(archiveSK), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", config.StatusLogsTable, err)
	}
	logger.Info().Str("table", config.StatusLogsTable).Msg("table created")
	return nil
}
