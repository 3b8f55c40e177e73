package transfer

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
	"github.com/ajitpratap0/crossbar/pkg/testutil"
)

// memSource serves fixed CSV documents
type memSource struct {
	locator.Base
	docs    []testutil.NamedCSV
	err     error
	noLocal bool

	mu   sync.Mutex
	seen []locator.Options
}

func (m *memSource) String() string { return string(m.Kind()) + ":memory" }

func (m *memSource) LocalData(ctx context.Context, _ *schema.Table, opts locator.Options) (*stream.Stream[*stream.CsvStream], error) {
	m.mu.Lock()
	m.seen = append(m.seen, opts)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.noLocal {
		return nil, nil
	}
	return testutil.CsvStreams(ctx, m.docs...), nil
}

// memDest loads streams one at a time into memory
type memDest struct {
	locator.Base
	onLoad func(name string)

	mu       sync.Mutex
	loaded   []testutil.NamedCSV
	direct   []locator.Locator
	writes   int
	lastOpts locator.Options
}

func (m *memDest) String() string { return string(m.Kind()) + ":memory" }

func (m *memDest) DirectTransfer(_ context.Context, _ *schema.Table, source locator.Locator, _ locator.Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direct = append(m.direct, source)
	return nil
}

func (m *memDest) WriteLocalData(ctx context.Context, _ *schema.Table, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	m.mu.Lock()
	m.writes++
	m.lastOpts = opts
	m.mu.Unlock()

	pool := bridge.FromContext(ctx)
	return stream.Generate(ctx, func(ctx context.Context, emit stream.Emit[*bridge.Future[struct{}]]) error {
		return stream.ForEach(ctx, data, func(s *stream.CsvStream) error {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeCancelled, "cancelled before stream")
			}
			f := bridge.Run(ctx, pool, func() (struct{}, error) {
				var buf bytes.Buffer
				if _, err := stream.CopyTo(context.WithoutCancel(ctx), &buf, s.Data); err != nil {
					return struct{}{}, err
				}
				m.mu.Lock()
				m.loaded = append(m.loaded, testutil.NamedCSV{Name: s.Name, Data: buf.String()})
				m.mu.Unlock()
				if m.onLoad != nil {
					m.onLoad(s.Name)
				}
				return struct{}{}, nil
			})
			if err := emit(f); err != nil {
				return err
			}
			_, err := f.Wait(ctx)
			return err
		})
	}), nil
}

func newSource(kind locator.Kind, docs ...testutil.NamedCSV) *memSource {
	return &memSource{Base: locator.NewBase(kind), docs: docs}
}

func newDest(kind locator.Kind) *memDest {
	return &memDest{Base: locator.NewBase(kind)}
}

var threeStreams = []testutil.NamedCSV{
	{Name: "s1", Data: "id,name\n1,a\n2,b\n"},
	{Name: "s2", Data: "id,name\n3,c\n"},
	{Name: "s3", Data: "id,name\n4,d\n5,e\n"},
}

func TestTransfer_StagedPreservesStreamOrder(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := newSource(locator.KindCSV, threeStreams...)
	dst := newDest(locator.KindPostgres)

	err := Transfer(ctx, src, testutil.UsersTable(), dst, locator.IfExistsAppend)
	require.NoError(t, err)

	assert.Equal(t, threeStreams, dst.loaded)
	assert.Empty(t, dst.direct)
	assert.Equal(t, locator.IfExistsAppend, dst.lastOpts.IfExists)
}

func TestTransfer_DirectPathSkipsLocalData(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := newSource(locator.KindGS, threeStreams...)
	dst := newDest(locator.KindBigQuery)

	require.NoError(t, Transfer(ctx, src, testutil.UsersTable(), dst, locator.IfExistsOverwrite))

	require.Len(t, dst.direct, 1)
	assert.Same(t, src, dst.direct[0])
	assert.Empty(t, src.seen, "direct transfer must not read local data")
	assert.Zero(t, dst.writes)
}

func TestTransfer_StagedUsesRunScopedTemporaries(t *testing.T) {
	ctx := testutil.TestContext(t)
	temp, err := locator.NewTemporaryStorage([]string{"gs://bucket/tmp/"})
	require.NoError(t, err)

	src := newSource(locator.KindBigQuery, threeStreams[0])
	dst := newDest(locator.KindPostgres)
	err = Transfer(ctx, src, testutil.UsersTable(), dst, locator.IfExistsError,
		WithTemporary(temp), WithRunID("run-1"),
		WithQuery(locator.Query{Where: "id > 1"}),
		WithFromArgs(locator.DriverArgs{"location": "EU"}))
	require.NoError(t, err)

	require.Len(t, src.seen, 1)
	loc, err := src.seen[0].Temporary.Resolve(locator.KindGS)
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/tmp/run-1/", loc)
	assert.Equal(t, "id > 1", src.seen[0].Query.Where)
	assert.Equal(t, "EU", src.seen[0].FromArgs.Get("location", ""))
}

func TestTransfer_UnreadableSourceIsCapabilityError(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := newSource(locator.KindS3)
	src.noLocal = true
	dst := newDest(locator.KindPostgres)

	err := Transfer(ctx, src, testutil.UsersTable(), dst, locator.IfExistsError)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	assert.Zero(t, dst.writes)
}

func TestTransfer_ExtractionFailureAbortsBeforeDestination(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := newSource(locator.KindPostgres)
	src.err = errors.New(errors.ErrorTypeConnection, "connection refused")
	dst := newDest(locator.KindCSV)

	err := Transfer(ctx, src, testutil.UsersTable(), dst, locator.IfExistsOverwrite)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Zero(t, dst.writes)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "postgres:memory", e.Details["source"])
}

func TestTransfer_InvalidSchema(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := newSource(locator.KindCSV, threeStreams...)
	dst := newDest(locator.KindPostgres)

	err := Transfer(ctx, src, &schema.Table{Name: "t"}, dst, locator.IfExistsError)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Empty(t, src.seen)
}

func TestTransfer_CancelBetweenStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(testutil.TestContext(t))
	defer cancel()

	src := newSource(locator.KindCSV, threeStreams...)
	dst := newDest(locator.KindPostgres)
	dst.onLoad = func(name string) {
		if name == "s1" {
			cancel()
		}
	}

	err := Transfer(ctx, src, testutil.UsersTable(), dst, locator.IfExistsAppend)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled), "got %v", err)

	dst.mu.Lock()
	defer dst.mu.Unlock()
	require.Len(t, dst.loaded, 1)
	assert.Equal(t, threeStreams[0], dst.loaded[0])
}
