package bridge

import (
	"context"
	"io"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// NewStreamReader adapts a byte stream into a blocking reader. The stream is
// pulled only as fast as the reader consumes it; a stream error becomes the
// reader's error. The returned reader must be read to EOF or closed so the
// copying goroutine exits.
func NewStreamReader(ctx context.Context, data *stream.Stream[[]byte]) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := stream.CopyTo(ctx, pw, data)
		pw.CloseWithError(err)
	}()
	return pr
}

// CountingReader counts the bytes read through it and remembers the first
// error other than io.EOF. Bulk loaders use it to report what the encoder
// failed with when the server only says the input was aborted.
type CountingReader struct {
	r   io.Reader
	n   int64
	err error
}

// NewCountingReader wraps r
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	return n, err
}

// Count returns the number of bytes read so far
func (c *CountingReader) Count() int64 { return c.n }

// Err returns the first read error, or nil
func (c *CountingReader) Err() error { return c.err }

// WriterStream runs the blocking writer fn on ex and exposes everything it
// writes as a byte stream. An error returned by fn terminates the stream.
func WriterStream(ctx context.Context, ex Executor, fn func(w io.Writer) error) *stream.Stream[[]byte] {
	pr, pw := io.Pipe()
	err := ex.Go(ctx, func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf(errors.ErrorTypeInternal, "writer panicked: %v", r)
			}
			pw.CloseWithError(err)
		}()
		err = fn(pw)
	})
	if err != nil {
		pw.CloseWithError(err)
	}
	return stream.FromReader(ctx, pr, stream.DefaultChunkSize)
}

// SpawnTransform converts input into a new byte stream by running transform
// on ex with a reader over input and a writer feeding the output. Input and
// output proceed concurrently, so the whole partition is never buffered.
// Untyped transform errors are reported as data errors.
func SpawnTransform(ctx context.Context, ex Executor, input *stream.Stream[[]byte], transform func(r io.Reader, w io.Writer) error) *stream.Stream[[]byte] {
	return WriterStream(ctx, ex, func(w io.Writer) error {
		r := NewStreamReader(ctx, input)
		defer r.Close()
		if err := transform(r, w); err != nil {
			var typed *errors.Error
			if errors.As(err, &typed) {
				return err
			}
			return errors.Wrap(err, errors.ErrorTypeData, "error transforming stream")
		}
		return nil
	})
}
