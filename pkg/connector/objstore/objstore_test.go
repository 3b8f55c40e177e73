package objstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/compression"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/testutil"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := compression.NewWriter(compression.Gzip, &buf, compression.Default)
	require.NoError(t, err)
	_, err = io.WriteString(w, s)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gunzipped(t *testing.T, data []byte) string {
	t.Helper()
	r, err := compression.NewReader(compression.Gzip, bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func newStore(t *testing.T, mem *testutil.MemStorage, s string) *Store {
	t.Helper()
	u, err := ParseURL(locator.KindGS, s)
	require.NoError(t, err)
	return NewStore(u, func(_ context.Context, bucket string) (Bucket, error) {
		return mem.Bucket(bucket), nil
	})
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		key    string
		dir    bool
		out    string
	}{
		{"gs://b/dir/", "b", "dir/", true, "gs://b/dir/"},
		{"gs://b", "b", "", true, "gs://b/"},
		{"gs://b/", "b", "", true, "gs://b/"},
		{"gs://b/dir/file.csv", "b", "dir/file.csv", false, "gs://b/dir/file.csv"},
	}
	for _, tt := range tests {
		u, err := ParseURL(locator.KindGS, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.bucket, u.Bucket)
		assert.Equal(t, tt.key, u.Key)
		assert.Equal(t, tt.dir, u.IsDirectory())
		assert.Equal(t, tt.out, u.String())
	}

	for _, bad := range []string{"gs:///x", "s3://b/x", "gs://b/a//c", "gs:b"} {
		_, err := ParseURL(locator.KindGS, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse), bad)
	}

	u, _ := ParseURL(locator.KindS3, "s3://b/tmp/")
	assert.Equal(t, "s3://b/tmp/run/a.csv", u.Join("run/a.csv").String())
}

func TestLocalData_Directory(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	mem.Put("b", "dir/b.csv.gz", gzipped(t, "id\n2\n"))
	mem.Put("b", "dir/a.csv", []byte("id\n1\n"))
	mem.Put("b", "dir/sub/c.csv", []byte("id\n3\n"))
	mem.Put("b", "dir/readme.txt", []byte("skip"))
	mem.Put("b", "other/x.csv", []byte("id\n9\n"))

	data, err := newStore(t, mem, "gs://b/dir/").LocalData(ctx, locator.Options{})
	require.NoError(t, err)
	got, err := testutil.ReadCsvStreams(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []testutil.NamedCSV{
		{Name: "a", Data: "id\n1\n"},
		{Name: "b", Data: "id\n2\n"},
		{Name: "sub/c", Data: "id\n3\n"},
	}, got)
}

func TestLocalData_DuplicateStreamNames(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	mem.Put("b", "dir/a.csv", []byte("id\n1\n"))
	mem.Put("b", "dir/a.csv.gz", gzipped(t, "id\n2\n"))

	_, err := newStore(t, mem, "gs://b/dir/").LocalData(ctx, locator.Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), "got %v", err)
}

func TestLocalData_SingleObject(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	mem.Put("b", "dir/users.csv", []byte("id\n1\n"))
	mem.Put("b", "dir/users.csv.old", []byte("id\n0\n"))

	data, err := newStore(t, mem, "gs://b/dir/users.csv").LocalData(ctx, locator.Options{})
	require.NoError(t, err)
	got, err := testutil.ReadCsvStreams(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []testutil.NamedCSV{{Name: "users", Data: "id\n1\n"}}, got)

	_, err = newStore(t, mem, "gs://b/dir/missing.csv").LocalData(ctx, locator.Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	_, err = newStore(t, mem, "gs://b/dir/").LocalData(ctx, locator.Options{Query: locator.Query{Where: "id = 1"}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestLocalData_EmptyDirectory(t *testing.T) {
	ctx := testutil.TestContext(t)
	data, err := newStore(t, testutil.NewMemStorage(), "gs://b/empty/").LocalData(ctx, locator.Options{})
	require.NoError(t, err)
	got, err := testutil.ReadCsvStreams(ctx, data)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func write(t *testing.T, ctx context.Context, s *Store, opts locator.Options, docs ...testutil.NamedCSV) error {
	t.Helper()
	futures, err := s.WriteLocalData(ctx, testutil.CsvStreams(ctx, docs...), opts)
	if err != nil {
		return err
	}
	_, err = bridge.AwaitAll(ctx, futures, 4)
	return err
}

func TestWriteLocalData_IfExists(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	mem.Put("b", "out/old.csv", []byte("id\n0\n"))
	s := newStore(t, mem, "gs://b/out/")
	doc := testutil.NamedCSV{Name: "new", Data: "id\n1\n"}

	err := write(t, ctx, s, locator.Options{IfExists: locator.IfExistsError}, doc)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLifecycle))
	assert.Equal(t, []string{"out/old.csv"}, mem.Keys("b"))

	require.NoError(t, write(t, ctx, s, locator.Options{IfExists: locator.IfExistsAppend}, doc))
	assert.Equal(t, []string{"out/new.csv", "out/old.csv"}, mem.Keys("b"))

	require.NoError(t, write(t, ctx, s, locator.Options{IfExists: locator.IfExistsOverwrite},
		testutil.NamedCSV{Name: "part-1", Data: "id\n2\n"},
		testutil.NamedCSV{Name: "sub/part-2", Data: "id\n3\n"},
	))
	assert.Equal(t, []string{"out/part-1.csv", "out/sub/part-2.csv"}, mem.Keys("b"))
	got, _ := mem.Get("b", "out/sub/part-2.csv")
	assert.Equal(t, "id\n3\n", string(got))
}

func TestWriteLocalData_RejectsDuplicateNames(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	err := write(t, ctx, newStore(t, mem, "gs://b/out/"), locator.Options{},
		testutil.NamedCSV{Name: "a", Data: "id\n1\n"},
		testutil.NamedCSV{Name: "a", Data: "id\n2\n"},
	)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), "got %v", err)
	got, ok := mem.Get("b", "out/a.csv")
	if ok {
		assert.Equal(t, "id\n1\n", string(got))
	}
}

func TestWriteLocalData_Compressed(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	s := newStore(t, mem, "gs://b/out/")

	body := "id,name\n1,a\n2,b\n"
	opts := locator.Options{ToArgs: locator.DriverArgs{"compression": "gzip"}}
	require.NoError(t, write(t, ctx, s, opts, testutil.NamedCSV{Name: "users", Data: body}))

	data, ok := mem.Get("b", "out/users.csv.gz")
	require.True(t, ok)
	assert.Equal(t, body, gunzipped(t, data))

	// Reading back decompresses by suffix.
	streams, err := s.LocalData(ctx, locator.Options{})
	require.NoError(t, err)
	got, err := testutil.ReadCsvStreams(ctx, streams)
	require.NoError(t, err)
	assert.Equal(t, []testutil.NamedCSV{{Name: "users", Data: body}}, got)

	opts.ToArgs["compression"] = "rar"
	_, err = s.WriteLocalData(ctx, testutil.CsvStreams(ctx), opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestWriteLocalData_RequiresDirectory(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	err := write(t, ctx, newStore(t, mem, "gs://b/out.csv"), locator.Options{}, testutil.NamedCSV{Name: "x", Data: "id\n"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	assert.Zero(t, mem.Opened())
}

func TestWriteLocalData_OpenFailure(t *testing.T) {
	ctx := testutil.TestContext(t)
	u, err := ParseURL(locator.KindS3, "s3://b/out/")
	require.NoError(t, err)
	s := NewStore(u, func(context.Context, string) (Bucket, error) {
		return nil, io.ErrUnexpectedEOF
	})
	err = write(t, ctx, s, locator.Options{}, testutil.NamedCSV{Name: "x", Data: "id\n"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
