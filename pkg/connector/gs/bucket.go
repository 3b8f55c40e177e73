package gs

import (
	"context"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/crossbar/pkg/connector/objstore"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
)

// ClientOptions builds client options from driver arguments. Without a
// "credentials_file" argument the client uses application default
// credentials.
func ClientOptions(args locator.DriverArgs) []option.ClientOption {
	var opts []option.ClientOption
	if file := args.Get("credentials_file", ""); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	if endpoint := args.Get("endpoint", ""); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	return opts
}

// Opener returns an objstore.Opener creating Cloud Storage clients
func Opener(args locator.DriverArgs) objstore.Opener {
	opts := ClientOptions(args)
	return func(ctx context.Context, bucket string) (objstore.Bucket, error) {
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
		}
		return &gcsBucket{client: client, bucket: client.Bucket(bucket)}, nil
	}
}

type gcsBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func (b *gcsBucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return keys, nil
		}
		if err != nil {
			return nil, classify(err)
		}
		keys = append(keys, attrs.Name)
	}
}

func (b *gcsBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

func (b *gcsBucket) Upload(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := io.Copy(w, r); err != nil {
		// Cancelling before Close abandons the upload.
		cancel()
		_ = w.Close()
		return err
	}
	return classify(w.Close())
}

func (b *gcsBucket) Delete(ctx context.Context, key string) error {
	return classify(b.bucket.Object(key).Delete(ctx))
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}

// classify maps storage errors onto crossbar error types
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, "object not found")
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(err, errors.ErrorTypeAuthentication, apiErr.Message)
		case http.StatusNotFound:
			return errors.Wrap(err, errors.ErrorTypeNotFound, apiErr.Message)
		case http.StatusTooManyRequests:
			return errors.Wrap(err, errors.ErrorTypeRateLimit, apiErr.Message)
		}
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "cloud storage request failed")
}
