package gs

import (
	"context"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/crossbar/pkg/connector/objstore"
	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/testutil"
)

// fakeWarehouse exports a fixed object into whatever directory it is given
type fakeWarehouse struct {
	locator.Base
	mem      *testutil.MemStorage
	exported []string
}

func (f *fakeWarehouse) String() string { return "bigquery:p:d.t" }

func (f *fakeWarehouse) ExportTo(_ context.Context, _ *schema.Table, dest locator.Locator, _ locator.Options) error {
	f.exported = append(f.exported, dest.String())
	u := dest.(*Locator).URL()
	f.mem.Put(u.Bucket, u.Key+"000000000000.csv", []byte("id\n1\n"))
	return nil
}

func memLocator(t *testing.T, mem *testutil.MemStorage, s string) *Locator {
	t.Helper()
	loc, err := Parse(s)
	require.NoError(t, err)
	return loc.WithBuckets(func(_ context.Context, bucket string) (objstore.Bucket, error) {
		return mem.Bucket(bucket), nil
	})
}

func TestParse(t *testing.T) {
	for _, s := range []string{"gs://bucket/dir/", "gs://bucket/dir/file.csv", "gs://bucket/"} {
		loc, err := registry.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, loc.String())
		assert.Equal(t, locator.KindGS, loc.Kind())
	}
	_, err := Parse("s3://bucket/")
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestSupportsDirectTransfer(t *testing.T) {
	loc, err := Parse("gs://bucket/dir/")
	require.NoError(t, err)
	assert.True(t, loc.SupportsDirectTransferFrom(&fakeWarehouse{Base: locator.NewBase(locator.KindBigQuery)}))
	assert.False(t, loc.SupportsDirectTransferFrom(loc))
}

func TestDirectTransfer_Export(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	mem.Put("bucket", "dir/stale.csv", []byte("id\n0\n"))
	loc := memLocator(t, mem, "gs://bucket/dir/")
	wh := &fakeWarehouse{Base: locator.NewBase(locator.KindBigQuery), mem: mem}

	err := loc.DirectTransfer(ctx, testutil.UsersTable(), wh, locator.Options{IfExists: locator.IfExistsError})
	assert.True(t, errors.IsType(err, errors.ErrorTypeLifecycle))
	assert.Empty(t, wh.exported)

	require.NoError(t, loc.DirectTransfer(ctx, testutil.UsersTable(), wh, locator.Options{IfExists: locator.IfExistsOverwrite}))
	assert.Equal(t, []string{"gs://bucket/dir/"}, wh.exported)
	assert.Equal(t, []string{"dir/000000000000.csv"}, mem.Keys("bucket"))
}

func TestDirectTransfer_Unsupported(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	loc := memLocator(t, mem, "gs://bucket/dir/")
	other, err := Parse("gs://other/")
	require.NoError(t, err)

	err = loc.DirectTransfer(ctx, testutil.UsersTable(), other, locator.Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	wh := &fakeWarehouse{Base: locator.NewBase(locator.KindBigQuery), mem: mem}
	err = memLocator(t, mem, "gs://bucket/file.csv").DirectTransfer(ctx, testutil.UsersTable(), wh, locator.Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestRoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	mem := testutil.NewMemStorage()
	loc := memLocator(t, mem, "gs://bucket/out/")

	futures, err := loc.WriteLocalData(ctx, testutil.UsersTable(),
		testutil.CsvStreams(ctx, testutil.NamedCSV{Name: "users", Data: "id,name\n1,ann\n"}),
		locator.Options{})
	require.NoError(t, err)
	_, err = testutil.AwaitFutures(ctx, futures)
	require.NoError(t, err)

	data, err := loc.LocalData(ctx, testutil.UsersTable(), locator.Options{})
	require.NoError(t, err)
	got, err := testutil.ReadCsvStreams(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []testutil.NamedCSV{{Name: "users", Data: "id,name\n1,ann\n"}}, got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want errors.ErrorType
	}{
		{storage.ErrObjectNotExist, errors.ErrorTypeNotFound},
		{&googleapi.Error{Code: http.StatusForbidden}, errors.ErrorTypeAuthentication},
		{&googleapi.Error{Code: http.StatusTooManyRequests}, errors.ErrorTypeRateLimit},
		{&googleapi.Error{Code: http.StatusInternalServerError}, errors.ErrorTypeConnection},
	}
	for _, tt := range tests {
		assert.True(t, errors.IsType(classify(tt.err), tt.want), "%v", tt.err)
	}
	assert.NoError(t, classify(nil))
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(nil))
	assert.Len(t, ClientOptions(locator.DriverArgs{"credentials_file": "/tmp/key.json"}), 1)
	assert.Len(t, ClientOptions(locator.DriverArgs{"endpoint": "http://localhost:4443/storage/v1/"}), 2)
}
