// Package compression provides streaming codecs for compressed CSV objects.
//
// The codec is chosen from the object name's suffix, so "users.csv.gz" is
// read through gzip and written back as gzip. Supported suffixes:
//
//	.gz   gzip
//	.zst  zstandard
//	.sz   snappy framing format
//	.s2   s2 (snappy compatible)
//	.lz4  lz4 frame format
//
// # Basic Usage
//
//	alg := compression.FromName(obj.Name)
//	r, err := compression.NewReader(alg, body)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents the snappy framing format
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

var suffixes = []struct {
	suffix    string
	algorithm Algorithm
}{
	{".gz", Gzip},
	{".zst", Zstd},
	{".sz", Snappy},
	{".s2", S2},
	{".lz4", LZ4},
}

// FromName returns the algorithm implied by name's suffix, or None
func FromName(name string) Algorithm {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.algorithm
		}
	}
	return None
}

// Suffix returns the file suffix for alg, or "" for None
func Suffix(alg Algorithm) string {
	for _, s := range suffixes {
		if s.algorithm == alg {
			return s.suffix
		}
	}
	return ""
}

// TrimSuffix strips a compression suffix from name
func TrimSuffix(name string) string {
	return strings.TrimSuffix(name, Suffix(FromName(name)))
}

// ParseAlgorithm parses an algorithm name as used in driver arguments
func ParseAlgorithm(s string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(strings.TrimSpace(s))); alg {
	case "", None:
		return None, nil
	case Gzip, Snappy, LZ4, Zstd, S2:
		return alg, nil
	}
	return None, errors.Newf(errors.ErrorTypeParse, "unknown compression %q", s)
}

// NewReader returns a reader that decompresses src. Closing it does not
// close src.
func NewReader(alg Algorithm, src io.Reader) (io.ReadCloser, error) {
	switch alg {
	case None:
		return io.NopCloser(src), nil
	case Gzip:
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid gzip stream")
		}
		return r, nil
	case Zstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid zstd stream")
		}
		return dec.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeCapability, "unsupported compression %q", alg)
}

// NewWriter returns a writer that compresses into dst. Close flushes the
// compressed trailer but does not close dst.
func NewWriter(alg Algorithm, dst io.Writer, level Level) (io.WriteCloser, error) {
	switch alg {
	case None:
		return nopWriteCloser{dst}, nil
	case Gzip:
		w, err := gzip.NewWriterLevel(dst, mapGzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot create gzip writer")
		}
		return w, nil
	case Zstd:
		enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot create zstd writer")
		}
		return enc, nil
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case S2:
		return s2.NewWriter(dst), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot configure lz4 writer")
		}
		return w, nil
	}
	return nil, errors.Newf(errors.ErrorTypeCapability, "unsupported compression %q", alg)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
