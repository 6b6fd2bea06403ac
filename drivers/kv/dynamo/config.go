package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const (
	maxReadBatch  = 100 // BatchGetItem limit
	maxWriteBatch = 25  // BatchWriteItem limit
)

// Config holds batching settings shared by a Table and its relations.
type Config struct {
	// ReadBatchSize is the number of keys per BatchGetItem call.
	// Default: 100 (the DynamoDB maximum)
	ReadBatchSize int

	// WriteBatchSize is the number of requests per BatchWriteItem call.
	// Default: 25 (the DynamoDB maximum)
	WriteBatchSize int

	// MaxUnprocessedRetries bounds how often unprocessed keys or items
	// returned by a batch call are resubmitted before giving up.
	// Default: 5
	MaxUnprocessedRetries int
}

// DefaultConfig returns the DynamoDB service limits.
func DefaultConfig() Config {
	return Config{
		ReadBatchSize:         maxReadBatch,
		WriteBatchSize:        maxWriteBatch,
		MaxUnprocessedRetries: 5,
	}
}

// validate clamps config values to what DynamoDB accepts.
func (c *Config) validate() {
	if c.ReadBatchSize < 1 || c.ReadBatchSize > maxReadBatch {
		c.ReadBatchSize = maxReadBatch
	}
	if c.WriteBatchSize < 1 || c.WriteBatchSize > maxWriteBatch {
		c.WriteBatchSize = maxWriteBatch
	}
	if c.MaxUnprocessedRetries < 1 {
		c.MaxUnprocessedRetries = 5
	}
}

// ClientConfig selects the AWS region and, for DynamoDB Local, an endpoint.
type ClientConfig struct {
	Region   string
	Endpoint string
}

// NewClient loads the default AWS configuration chain and returns a DynamoDB client.
func NewClient(ctx context.Context, cc ClientConfig) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cc.Region != "" {
		opts = append(opts, config.WithRegion(cc.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if cc.Endpoint != "" {
			o.BaseEndpoint = aws.String(cc.Endpoint)
		}
	}), nil
}
