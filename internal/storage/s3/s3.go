// Package s3 implements storage.Backend on an S3-compatible bucket (AWS S3 or
// MinIO). Folders are key prefixes made visible by an empty marker object.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage"
)

var _ storage.Backend = (*Backend)(nil)

const folderMarker = ".folder"

type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional, e.g. MinIO
	AccessKeyID     string // optional; default credential chain otherwise
	SecretAccessKey string
	PathStyle       bool
	HTTPClient      *http.Client
}

type Backend struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint *url.URL
}

func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "ap-northeast-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	b := &Backend{client: client, bucket: cfg.Bucket, region: region}
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("s3 endpoint: %w", err)
		}
		b.endpoint = u
	}
	return b, nil
}

// FindFolder reports whether parentID/name/ carries a folder marker.
func (b *Backend) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	prefix := childPrefix(parentID, name)
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(prefix + folderMarker),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) || statusCode(err) == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return prefix, true, nil
}

func (b *Backend) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	prefix := childPrefix(parentID, name)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(prefix + folderMarker),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return "", err
	}
	return prefix, nil
}

func (b *Backend) CreateFile(ctx context.Context, parentID, name, mimeType string, body io.Reader) (string, error) {
	key := strings.TrimSuffix(childPrefix(parentID, name), "/")
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", classify(err)
	}
	return key, nil
}

func (b *Backend) GrantPublicRead(ctx context.Context, fileID string) error {
	_, err := b.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(fileID),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	return err
}

func (b *Backend) FileURL(fileID string) string {
	escaped := escapeKey(fileID)
	if b.endpoint != nil {
		return strings.TrimRight(b.endpoint.String(), "/") + "/" + url.PathEscape(b.bucket) + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, escaped)
}

// childPrefix returns parent/name/ with name made safe for use as a single
// key segment.
func childPrefix(parentID, name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	if parentID == "" {
		return name + "/"
	}
	return strings.TrimSuffix(parentID, "/") + "/" + name + "/"
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func statusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

// classify maps a failed PutObject to storage.ErrUpload for client errors
// other than auth and throttling, and to storage.ErrTransport otherwise.
func classify(err error) error {
	code := statusCode(err)
	switch {
	case code == 0, code == http.StatusUnauthorized, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: %w", storage.ErrTransport, err)
	default:
		return fmt.Errorf("%w: %w", storage.ErrUpload, err)
	}
}
