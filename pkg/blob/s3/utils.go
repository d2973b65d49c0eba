package s3

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/zerolog/log"
)

// AWSConfigParams override the default credential chain.
type AWSConfigParams struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func DefaultAWSConfig(ctx context.Context, params AWSConfigParams) (aws.Config, error) {
	// cache instance metadata credentials for an hour unless configured
	if _, ok := os.LookupEnv("AWS_EC2_METADATA_TTL"); !ok {
		err := os.Setenv("AWS_EC2_METADATA_TTL", "3600")
		if err != nil {
			return aws.Config{}, err
		}
	}
	var optFns []func(*config.LoadOptions) error
	if params.Region != "" {
		optFns = append(optFns, config.WithRegion(params.Region))
	}
	if params.AccessKeyID != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, "")))
	}
	return config.LoadDefaultConfig(ctx, optFns...)
}

// HasValidCredentials returns true if the AWS config has valid credentials.
func HasValidCredentials(config aws.Config) bool {
	if config.Credentials == nil {
		return false
	}
	credentials, err := config.Credentials.Retrieve(context.Background())
	if err != nil {
		log.Debug().Err(err).Msg("Failed to check if we have valid AWS credentials")
		return false
	}
	return credentials.HasKeys()
}
