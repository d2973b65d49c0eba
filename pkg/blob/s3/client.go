package s3

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type ClientWrapper struct {
	S3         *s3.Client
	Downloader *manager.Downloader
	Uploader   *manager.Uploader
	Endpoint   string
	Region     string
}

type ClientProviderParams struct {
	AWSConfig aws.Config
}

// ClientProvider hands out one client per endpoint and region.
type ClientProvider struct {
	awsConfig aws.Config
	clients   map[string]*ClientWrapper
	clientsMu sync.RWMutex
}

func NewClientProvider(params ClientProviderParams) *ClientProvider {
	return &ClientProvider{
		awsConfig: params.AWSConfig,
		clients:   make(map[string]*ClientWrapper),
	}
}

func (s *ClientProvider) IsInstalled() bool {
	return HasValidCredentials(s.awsConfig)
}

func (s *ClientProvider) GetConfig() aws.Config {
	return s.awsConfig
}

func (s *ClientProvider) GetClient(endpoint, region string) *ClientWrapper {
	clientIdentifier := fmt.Sprintf("%s-%s", endpoint, region)
	s.clientsMu.RLock()
	client, ok := s.clients[clientIdentifier]
	s.clientsMu.RUnlock()
	if ok {
		return client
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	client, ok = s.clients[clientIdentifier]
	if ok {
		return client
	}

	s3Config := s.awsConfig.Copy()
	if region != "" {
		s3Config.Region = region
	}

	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if endpoint != "" {
			// custom endpoints are S3 compatible stores such as minio
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	client = &ClientWrapper{
		S3:         s3Client,
		Downloader: manager.NewDownloader(s3Client),
		Uploader:   manager.NewUploader(s3Client),
		Endpoint:   endpoint,
		Region:     region,
	}
	s.clients[clientIdentifier] = client
	return client
}
