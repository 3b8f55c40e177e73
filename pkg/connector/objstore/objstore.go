// Package objstore implements the behavior shared by the object storage
// locators (gs:, s3:). A driver supplies a Bucket for its SDK; Store turns
// it into CSV streams and back.
//
// Reading accepts a single object or every CSV object under a prefix,
// decompressing by suffix. Writing always targets a prefix: each stream
// becomes one object named after the stream.
package objstore

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/compression"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/metrics"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// Bucket is the subset of an object storage client a Store needs. Open
// reports a missing object with an ErrorTypeNotFound error.
type Bucket interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Opener returns a client for bucket. Each call's Bucket is closed by the
// caller when the operation that opened it finishes.
type Opener func(ctx context.Context, bucket string) (Bucket, error)

// Store reads and writes CSV objects at one URL
type Store struct {
	url  URL
	open Opener
}

// NewStore returns a store for url backed by buckets from open
func NewStore(url URL, open Opener) *Store {
	return &Store{url: url, open: open}
}

// URL returns the store's location
func (s *Store) URL() URL {
	return s.url
}

// WithOpener returns a copy of s using open
func (s *Store) WithOpener(open Opener) *Store {
	return &Store{url: s.url, open: open}
}

// objectURL returns the URL of one object in the store's bucket
func (s *Store) objectURL(key string) URL {
	return URL{Scheme: s.url.Scheme, Bucket: s.url.Bucket, Key: key}
}

// typeOr returns err's type, or def when err carries none
func typeOr(err error, def errors.ErrorType) errors.ErrorType {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.Type
	}
	return def
}

func (s *Store) withBucket(ctx context.Context, fn func(b Bucket) error) error {
	b, err := s.open(ctx, s.url.Bucket)
	if err != nil {
		return errors.Wrapf(err, typeOr(err, errors.ErrorTypeConnection), "cannot open %s bucket %s", s.url.Scheme, s.url.Bucket)
	}
	defer b.Close()
	return fn(b)
}

// isCSV reports whether key names a possibly compressed CSV object
func isCSV(key string) bool {
	return strings.HasSuffix(compression.TrimSuffix(key), ".csv")
}

// DataKeys returns the CSV objects the store reads, sorted. For a single
// object URL that does not exist it returns a not found error.
func (s *Store) DataKeys(ctx context.Context) ([]string, error) {
	return bridge.Go(ctx, func() ([]string, error) {
		var keys []string
		err := s.withBucket(ctx, func(b Bucket) error {
			listed, err := b.List(ctx, s.url.Key)
			if err != nil {
				return errors.Wrapf(err, typeOr(err, errors.ErrorTypeConnection), "cannot list %s", s.url)
			}
			for _, key := range listed {
				switch {
				case !s.url.IsDirectory():
					if key == s.url.Key {
						keys = append(keys, key)
					}
				case isCSV(key):
					keys = append(keys, key)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if !s.url.IsDirectory() && len(keys) == 0 {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "%s does not exist", s.url)
		}
		sort.Strings(keys)
		return keys, nil
	}).Wait(ctx)
}

// streamName names the stream for key relative to the store's prefix
func (s *Store) streamName(key string) string {
	if !s.url.IsDirectory() {
		return stream.NameFromPath(path.Base(key))
	}
	return stream.NameFromPath(strings.TrimPrefix(key, s.url.Key))
}

// LocalData streams each CSV object in key order. Objects are opened as
// their streams are pulled.
func (s *Store) LocalData(ctx context.Context, opts locator.Options) (*stream.Stream[*stream.CsvStream], error) {
	if err := opts.Query.RejectUnless(s.url.Scheme); err != nil {
		return nil, err
	}
	keys, err := s.DataKeys(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = s.streamName(key)
	}
	if err := stream.DuplicateName(names); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation, "objects under %s would share a stream name", s.url)
	}
	logger.FromContext(ctx).Debug("reading objects", zap.Int("objects", len(keys)))

	return stream.Generate(ctx, func(ctx context.Context, emit stream.Emit[*stream.CsvStream]) error {
		for _, key := range keys {
			key := key
			data := bridge.WriterStream(ctx, bridge.Dedicated, func(w io.Writer) error {
				return s.download(ctx, key, w)
			})
			if err := emit(&stream.CsvStream{Name: s.streamName(key), Data: data}); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func (s *Store) download(ctx context.Context, key string, w io.Writer) error {
	return s.withBucket(ctx, func(b Bucket) error {
		rc, err := b.Open(ctx, key)
		if err != nil {
			return errors.Wrapf(err, typeOr(err, errors.ErrorTypeConnection), "cannot open %s", s.objectURL(key))
		}
		defer rc.Close()
		dec, err := compression.NewReader(compression.FromName(key), rc)
		if err != nil {
			return err
		}
		defer dec.Close()
		if _, err := io.Copy(w, dec); err != nil {
			return errors.Wrapf(err, typeOr(err, errors.ErrorTypeConnection), "error reading %s", s.objectURL(key)).
				WithDetail("object", key)
		}
		return nil
	})
}

// Prepare applies ifExists to the store's prefix: Error fails when any
// object exists under it, Overwrite deletes them and Append leaves them.
func (s *Store) Prepare(ctx context.Context, ifExists locator.IfExists) error {
	if !s.url.IsDirectory() {
		return errors.Newf(errors.ErrorTypeCapability, "can only write to a %s directory ending in '/', not %s", s.url.Scheme, s.url)
	}
	_, err := bridge.Go(ctx, func() (struct{}, error) {
		return struct{}{}, s.withBucket(ctx, func(b Bucket) error {
			existing, err := b.List(ctx, s.url.Key)
			if err != nil {
				return errors.Wrapf(err, typeOr(err, errors.ErrorTypeConnection), "cannot list %s", s.url)
			}
			if len(existing) == 0 {
				return nil
			}
			switch ifExists {
			case locator.IfExistsAppend:
				return nil
			case locator.IfExistsOverwrite:
				logger.FromContext(ctx).Debug("deleting existing objects", zap.Int("objects", len(existing)))
				for _, key := range existing {
					if err := b.Delete(ctx, key); err != nil {
						return errors.Wrapf(err, typeOr(err, errors.ErrorTypeConnection), "cannot delete %s", s.objectURL(key)).
							WithDetail("object", key)
					}
				}
				return nil
			default:
				return errors.Newf(errors.ErrorTypeLifecycle, "%s already contains %d objects", s.url, len(existing)).
					WithDetail("locator", s.url.String())
			}
		})
	}).Wait(ctx)
	return err
}

// WriteLocalData prepares the prefix, then uploads each stream as
// <prefix><name>.csv, compressed when the "compression" argument is set.
// Uploads of different streams may overlap.
func (s *Store) WriteLocalData(ctx context.Context, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	alg, err := compression.ParseAlgorithm(opts.ToArgs.Get("compression", ""))
	if err != nil {
		return nil, err
	}
	if err := s.Prepare(ctx, opts.IfExists); err != nil {
		return nil, err
	}
	pool := bridge.FromContext(ctx)
	return stream.Map(ctx, stream.UniqueNames(ctx, data), func(cs *stream.CsvStream) (*bridge.Future[struct{}], error) {
		return s.upload(logger.With(ctx, zap.String("stream", cs.Name)), pool, alg, cs), nil
	}), nil
}

func (s *Store) upload(ctx context.Context, pool *bridge.Pool, alg compression.Algorithm, cs *stream.CsvStream) *bridge.Future[struct{}] {
	res, err := pool.Reserve(ctx, 2)
	if err != nil {
		return bridge.Resolved(struct{}{}, err)
	}
	defer res.Release()

	key := s.url.Key + strings.TrimPrefix(cs.Name, "/") + ".csv" + compression.Suffix(alg)
	body := cs.Data
	if alg != compression.None {
		body = bridge.SpawnTransform(ctx, res, cs.Data, func(r io.Reader, w io.Writer) error {
			zw, err := compression.NewWriter(alg, w, compression.Default)
			if err != nil {
				return err
			}
			if _, err := io.Copy(zw, r); err != nil {
				zw.Close()
				return err
			}
			return zw.Close()
		})
	}

	return bridge.Run(ctx, res, func() (struct{}, error) {
		defer metrics.TrackCall()()
		err := s.withBucket(ctx, func(b Bucket) error {
			r := bridge.NewStreamReader(ctx, body)
			defer r.Close()
			counted := bridge.NewCountingReader(r)
			err := b.Upload(ctx, key, counted)
			if counted.Err() != nil {
				err = counted.Err()
			}
			metrics.ObserveStream(string(s.url.Scheme), counted.Count(), err)
			if err == nil {
				logger.FromContext(ctx).Debug("uploaded object", zap.String("key", key), zap.Int64("bytes", counted.Count()))
			}
			return err
		})
		if err != nil {
			return struct{}{}, errors.Wrapf(err, typeOr(err, errors.ErrorTypeConnection), "error writing %s", s.objectURL(key)).
				WithDetail("stream", cs.Name)
		}
		return struct{}{}, nil
	})
}
