package stream

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ajitpratap0/crossbar/pkg/compression"
	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// DefaultChunkSize is the read size used when splitting a reader into chunks
const DefaultChunkSize = 64 * 1024

// CsvStream is one table's worth of generic CSV: a name (unique within a
// transfer, usually the table name or a relative object path without its
// extension) and the data as byte chunks. The first line of Data is the
// header row.
type CsvStream struct {
	Name string
	Data *Stream[[]byte]
}

// FromReader reads r in chunks of chunkSize bytes until EOF. The reader is
// closed when reading stops if it implements io.Closer.
func FromReader(ctx context.Context, r io.Reader, chunkSize int) *Stream[[]byte] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return Generate(ctx, func(ctx context.Context, emit Emit[[]byte]) error {
		if c, ok := r.(io.Closer); ok {
			defer c.Close()
		}
		for {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeCancelled, "read cancelled")
			}
			buf := make([]byte, chunkSize)
			n, err := r.Read(buf)
			if n > 0 {
				if emitErr := emit(buf[:n]); emitErr != nil {
					return emitErr
				}
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeConnection, "error reading data")
			}
		}
	})
}

// CopyTo writes every chunk of s to w
func CopyTo(ctx context.Context, w io.Writer, s *Stream[[]byte]) (int64, error) {
	var total int64
	err := ForEach(ctx, s, func(chunk []byte) error {
		n, err := w.Write(chunk)
		total += int64(n)
		return err
	})
	return total, err
}

// SkipHeader drops everything up to and including the first newline of s.
// Used when concatenating CSV streams that each start with a header row.
func SkipHeader(ctx context.Context, s *Stream[[]byte]) *Stream[[]byte] {
	return Generate(ctx, func(ctx context.Context, emit Emit[[]byte]) error {
		skipping := true
		return ForEach(ctx, s, func(chunk []byte) error {
			if skipping {
				i := bytes.IndexByte(chunk, '\n')
				if i < 0 {
					return nil
				}
				skipping = false
				chunk = chunk[i+1:]
				if len(chunk) == 0 {
					return nil
				}
			}
			return emit(chunk)
		})
	})
}

// NameFromPath turns a relative file or object path into a stream name by
// dropping compression and ".csv" suffixes, e.g. "2020/a.csv.gz" -> "2020/a".
func NameFromPath(rel string) string {
	rel = compression.TrimSuffix(strings.TrimPrefix(rel, "/"))
	return strings.TrimSuffix(rel, ".csv")
}

// DuplicateName returns an error if two names map to the same stream name,
// e.g. "a.csv" and "a.csv.gz" in one directory.
func DuplicateName(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := strings.TrimPrefix(name, "/")
		if seen[key] {
			return duplicateError(name)
		}
		seen[key] = true
	}
	return nil
}

// UniqueNames passes s through, failing at the first stream whose name was
// already seen. Writers that derive a file or object path from the name
// use it so no stream silently replaces another.
func UniqueNames(ctx context.Context, s *Stream[*CsvStream]) *Stream[*CsvStream] {
	seen := make(map[string]bool)
	return Map(ctx, s, func(cs *CsvStream) (*CsvStream, error) {
		key := strings.TrimPrefix(cs.Name, "/")
		if seen[key] {
			return nil, duplicateError(cs.Name)
		}
		seen[key] = true
		return cs, nil
	})
}

func duplicateError(name string) error {
	return errors.Newf(errors.ErrorTypeValidation, "more than one stream is named %q", name).
		WithDetail("stream", name)
}
