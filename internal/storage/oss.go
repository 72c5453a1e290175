package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
)

// OSSConfig locates the bucket objects are written to.
type OSSConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	PublicBaseURL   string
	AccessKeyID     string
	AccessKeySecret string
}

// OSSUploader stores objects in an Alibaba Cloud OSS bucket.
type OSSUploader struct {
	client  *oss.Client
	bucket  string
	baseURL string
}

// NewOSSUploader builds a client with static keys, or with the environment
// credentials provider when no keys are configured.
func NewOSSUploader(cfg OSSConfig) *OSSUploader {
	var provider credentials.CredentialsProvider = credentials.NewEnvironmentVariableCredentialsProvider()
	if cfg.AccessKeyID != "" {
		provider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret)
	}

	ossCfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(provider).
		WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		ossCfg = ossCfg.WithEndpoint(cfg.Endpoint)
	}

	return &OSSUploader{
		client:  oss.NewClient(ossCfg),
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
	}
}

func publicBaseURL(cfg OSSConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("oss-%s.aliyuncs.com", cfg.Region)
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s", cfg.Bucket, endpoint)
}

func (u *OSSUploader) Backend() string { return BackendOSS }

func (u *OSSUploader) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	req := &oss.PutObjectRequest{
		Bucket:      oss.Ptr(u.bucket),
		Key:         oss.Ptr(key),
		Body:        body,
		ContentType: oss.Ptr(contentType),
	}
	if size > 0 {
		req.ContentLength = oss.Ptr(size)
	}
	if _, err := u.client.PutObject(ctx, req); err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return u.baseURL + "/" + key, nil
}
