package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// awsClients are the AWS service clients shared by all backends and the auth provider.
type awsClients struct {
	DynamoDB *dynamodb.Client
	Presign  *s3.PresignClient
	Cognito  *cip.Client
}

// loadAWSConfig resolves region and credentials. A static key pair from the configuration
// or the environment takes precedence over the default credential chain.
func loadAWSConfig(ctx context.Context, cfg awsConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load AWS configuration")
	}
	return awsCfg, nil
}

// newAWSClients builds the service clients. Endpoint, when set, points every client at a
// local emulator.
func newAWSClients(awsCfg aws.Config, endpoint string) *awsClients {
	var base *string
	if endpoint != "" {
		base = aws.String(endpoint)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = base
		o.UsePathStyle = base != nil
	})

	return &awsClients{
		DynamoDB: dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = base
		}),
		Presign: s3.NewPresignClient(s3Client),
		Cognito: cip.NewFromConfig(awsCfg, func(o *cip.Options) {
			o.BaseEndpoint = base
		}),
	}
}
