// Package testutil provides testing utilities for crossbar
package testutil

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a 30-second context carrying a test logger and a
// small worker pool. It is cancelled when the test ends.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	ctx = logger.NewContext(ctx, TestLogger(t))
	return bridge.WithPool(ctx, bridge.NewPool(4))
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// NamedCSV is the name and full content of one CSV stream
type NamedCSV struct {
	Name string
	Data string
}

// CsvStreams returns the given CSV documents as a stream of streams. Data is
// split into small chunks so consumers see chunk boundaries mid-row.
func CsvStreams(ctx context.Context, docs ...NamedCSV) *stream.Stream[*stream.CsvStream] {
	return stream.Generate(ctx, func(ctx context.Context, emit stream.Emit[*stream.CsvStream]) error {
		for _, doc := range docs {
			s := &stream.CsvStream{
				Name: doc.Name,
				Data: stream.FromReader(ctx, bytes.NewReader([]byte(doc.Data)), 5),
			}
			if err := emit(s); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadCsvStreams drains every stream and returns its content in order
func ReadCsvStreams(ctx context.Context, streams *stream.Stream[*stream.CsvStream]) ([]NamedCSV, error) {
	var out []NamedCSV
	err := stream.ForEach(ctx, streams, func(s *stream.CsvStream) error {
		var buf bytes.Buffer
		if _, err := stream.CopyTo(ctx, &buf, s.Data); err != nil {
			return err
		}
		out = append(out, NamedCSV{Name: s.Name, Data: buf.String()})
		return nil
	})
	return out, err
}

// UsersTable is a small schema used across driver tests:
// id int64 not null, name text, score float64, active bool, created_at timestamptz
func UsersTable() *schema.Table {
	return &schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", DataType: schema.Scalar(schema.TypeInt64)},
			{Name: "name", IsNullable: true, DataType: schema.Scalar(schema.TypeText)},
			{Name: "score", IsNullable: true, DataType: schema.Scalar(schema.TypeFloat64)},
			{Name: "active", IsNullable: true, DataType: schema.Scalar(schema.TypeBool)},
			{Name: "created_at", IsNullable: true, DataType: schema.Scalar(schema.TypeTimestampWithTimeZone)},
		},
	}
}

// AwaitFutures waits for every completion handle in order and returns the
// first error.
func AwaitFutures(ctx context.Context, futures *stream.Stream[*bridge.Future[struct{}]]) (int, error) {
	n := 0
	err := stream.ForEach(ctx, futures, func(f *bridge.Future[struct{}]) error {
		n++
		_, err := f.Wait(ctx)
		return err
	})
	return n, err
}
