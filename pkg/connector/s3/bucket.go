package s3

import (
	"context"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	s3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ajitpratap0/crossbar/pkg/connector/objstore"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
)

const (
	defaultPartSizeMB  = 16
	defaultConcurrency = 4
)

// LoadConfig loads AWS configuration, preferring static keys from args
func LoadConfig(ctx context.Context, args locator.DriverArgs) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region := args.Get("region", ""); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	keyID, secret := args.Get("aws_access_key_id", ""), args.Get("aws_secret_access_key", "")
	if keyID != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, args.Get("aws_session_token", "")),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS config")
	}
	return cfg, nil
}

// Credentials resolves the credentials a transfer would use, for backends
// that read S3 themselves.
func Credentials(ctx context.Context, args locator.DriverArgs) (aws.Credentials, error) {
	cfg, err := LoadConfig(ctx, args)
	if err != nil {
		return aws.Credentials{}, err
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, errors.Wrap(err, errors.ErrorTypeAuthentication, "cannot resolve AWS credentials")
	}
	return creds, nil
}

func positiveInt(args locator.DriverArgs, key string, def int) (int, error) {
	s := args.Get(key, "")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.Newf(errors.ErrorTypeParse, "%s must be a positive integer, got %q", key, s)
	}
	return n, nil
}

// Opener returns an objstore.Opener creating S3 clients
func Opener(args locator.DriverArgs) objstore.Opener {
	return func(ctx context.Context, bucket string) (objstore.Bucket, error) {
		partSize, err := positiveInt(args, "part_size_mb", defaultPartSizeMB)
		if err != nil {
			return nil, err
		}
		concurrency, err := positiveInt(args, "upload_concurrency", defaultConcurrency)
		if err != nil {
			return nil, err
		}
		cfg, err := LoadConfig(ctx, args)
		if err != nil {
			return nil, err
		}
		endpoint := args.Get("endpoint", "")
		client := s3sdk.NewFromConfig(cfg, func(o *s3sdk.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		uploader := manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = int64(partSize) * 1024 * 1024
			u.Concurrency = concurrency
		})
		return &s3Bucket{client: client, uploader: uploader, bucket: bucket}, nil
	}
}

type s3Bucket struct {
	client   *s3sdk.Client
	uploader *manager.Uploader
	bucket   string
}

func (b *s3Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	pages := s3sdk.NewListObjectsV2Paginator(b.client, &s3sdk.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	var keys []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, classify(err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (b *s3Bucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3sdk.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err)
	}
	return out.Body, nil
}

func (b *s3Bucket) Upload(ctx context.Context, key string, r io.Reader) error {
	_, err := b.uploader.Upload(ctx, &s3sdk.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("text/csv"),
	})
	return classify(err)
}

func (b *s3Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3sdk.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return classify(err)
}

func (b *s3Bucket) Close() error {
	return nil
}

// classify maps S3 errors onto crossbar error types
func classify(err error) error {
	if err == nil {
		return nil
	}
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, "object not found")
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return errors.Wrap(err, errors.ErrorTypeAuthentication, apiErr.ErrorMessage())
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return errors.Wrap(err, errors.ErrorTypeNotFound, apiErr.ErrorMessage())
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			return errors.Wrap(err, errors.ErrorTypeRateLimit, apiErr.ErrorMessage())
		}
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "s3 request failed")
}
