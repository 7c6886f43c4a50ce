package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/monti/wfm/internal/metrics"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

// BatchWriteItem accepts at most 25 requests
const batchSize = 25

// DynamoArchive mirrors status logs into a DynamoDB table keyed by agent
type DynamoArchive struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoArchive creates a new DynamoDB archive
func NewDynamoArchive(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoArchive, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// Build the client directly; LoadDefaultConfig probes the EC2 IMDS
		// endpoint which hangs when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	archive := &DynamoArchive{
		client: client,
		config: cfg,
		logger: logger,
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.StatusLogsTable).
		Msg("DynamoDB archive initialized")

	return archive, nil
}

// NewArchive creates the archive selected by DYNAMO_MODE
func NewArchive(ctx context.Context, logger zerolog.Logger) (Archive, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoArchive(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB archive disabled (DYNAMO_MODE=none)")
		return NoopArchive{}, nil
	}
}

func (a *DynamoArchive) Enabled() bool { return true }

// Archive writes logs in chunks of 25. Unprocessed items are retried once.
func (a *DynamoArchive) Archive(ctx context.Context, logs []types.StatusLog) error {
	for i := 0; i < len(logs); i += batchSize {
		end := min(i+batchSize, len(logs))

		requests := make([]dbtypes.WriteRequest, 0, end-i)
		for _, l := range logs[i:end] {
			if l.DateKey == "" {
				l.DateKey = l.CreatedAt.UTC().Format("2006-01-02")
			}
			item, err := attributevalue.MarshalMap(l)
			if err != nil {
				return fmt.Errorf("failed to marshal status log: %w", err)
			}
			requests = append(requests, dbtypes.WriteRequest{
				PutRequest: &dbtypes.PutRequest{Item: item},
			})
		}

		out, err := a.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dbtypes.WriteRequest{
				a.config.StatusLogsTable: requests,
			},
		})
		if err != nil {
			metrics.ArchiveWrites.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to archive status logs: %w", err)
		}

		if len(out.UnprocessedItems) > 0 {
			out, err = a.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: out.UnprocessedItems,
			})
			if err != nil || len(out.UnprocessedItems) > 0 {
				metrics.ArchiveWrites.WithLabelValues("error").Inc()
				return fmt.Errorf("failed to archive %d status logs", len(out.UnprocessedItems[a.config.StatusLogsTable]))
			}
		}
		metrics.ArchiveWrites.WithLabelValues("ok").Inc()
	}
	return nil
}

// History returns the archived logs of an agent, optionally for one day (YYYY-MM-DD)
func (a *DynamoArchive) History(ctx context.Context, agentID, date string) ([]types.StatusLog, error) {
	keyCond := expression.Key(archivePK).Equal(expression.Value(agentID))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if date != "" {
		builder = builder.WithFilter(expression.Name("DateKey").Equal(expression.Value(date)))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	logs := make([]types.StatusLog, 0)
	var lastKey map[string]dbtypes.AttributeValue
	for {
		result, err := a.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(a.config.StatusLogsTable),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query status logs: %w", err)
		}

		var page []types.StatusLog
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status logs: %w", err)
		}
		logs = append(logs, page...)

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return logs, nil
}

// TruncateAll deletes all archived logs (scan + batch delete)
func (a *DynamoArchive) TruncateAll(ctx context.Context) error {
	tableName := a.config.StatusLogsTable
	var lastKey map[string]dbtypes.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName:            aws.String(tableName),
			ProjectionExpression: aws.String("#pk, #sk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": archivePK,
				"#sk": archiveSK,
			},
			Limit: aws.Int32(500),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := a.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", tableName, err)
		}

		for i := 0; i < len(result.Items); i += batchSize {
			end := min(i+batchSize, len(result.Items))

			requests := make([]dbtypes.WriteRequest, 0, end-i)
			for _, item := range result.Items[i:end] {
				requests = append(requests, dbtypes.WriteRequest{
					DeleteRequest: &dbtypes.DeleteRequest{
						Key: map[string]dbtypes.AttributeValue{
							archivePK: item[archivePK],
							archiveSK: item[archiveSK],
						},
					},
				})
			}

			_, err := a.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dbtypes.WriteRequest{
					tableName: requests,
				},
			})
			if err != nil {
				return fmt.Errorf("failed to truncate %s: %w", tableName, err)
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	a.logger.Info().Str("table", tableName).Msg("table truncated")
	return nil
}

// NoopArchive is used when DYNAMO_MODE=none
type NoopArchive struct{}

func (NoopArchive) Enabled() bool                                    { return false }
func (NoopArchive) Archive(context.Context, []types.StatusLog) error { return nil }
func (NoopArchive) TruncateAll(context.Context) error                { return nil }

func (NoopArchive) History(context.Context, string, string) ([]types.StatusLog, error) {
	return []types.StatusLog{}, nil
}
