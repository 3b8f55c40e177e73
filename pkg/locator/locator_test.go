package locator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

type fakeLocator struct {
	Base
	addr string
}

func (f fakeLocator) String() string { return f.addr }

func fake(kind Kind, addr string) fakeLocator {
	return fakeLocator{Base: NewBase(kind), addr: addr}
}

func TestSupportsDirectTransfer_DependsOnlyOnKinds(t *testing.T) {
	kinds := []Kind{KindCSV, KindPostgres, KindMySQL, KindGS, KindS3, KindBigQuery, KindSnowflake}
	for _, src := range kinds {
		for _, dst := range kinds {
			a := fake(dst, string(dst)+":one").SupportsDirectTransferFrom(fake(src, string(src)+":x"))
			b := fake(dst, string(dst)+":two").SupportsDirectTransferFrom(fake(src, string(src)+":y"))
			assert.Equal(t, a, b, "%s -> %s", src, dst)
			assert.Equal(t, SupportsDirectTransfer(src, dst), a)
		}
	}

	assert.True(t, SupportsDirectTransfer(KindGS, KindBigQuery))
	assert.True(t, SupportsDirectTransfer(KindBigQuery, KindGS))
	assert.True(t, SupportsDirectTransfer(KindS3, KindSnowflake))
	assert.False(t, SupportsDirectTransfer(KindCSV, KindPostgres))
	assert.False(t, SupportsDirectTransfer(KindS3, KindBigQuery))
}

func TestDirectTransfers_Sorted(t *testing.T) {
	pairs, desc := DirectTransfers()
	require.Len(t, pairs, 3)
	assert.Equal(t, Pair{KindBigQuery, KindGS}, pairs[0])
	assert.Equal(t, Pair{KindGS, KindBigQuery}, pairs[1])
	assert.Equal(t, Pair{KindS3, KindSnowflake}, pairs[2])
	assert.NotEmpty(t, desc[pairs[0]])
}

func TestBaseDefaults(t *testing.T) {
	ctx := context.Background()
	loc := fake(KindCSV, "csv:x")
	table := &schema.Table{Name: "t", Columns: []schema.Column{{Name: "a", DataType: schema.Scalar(schema.TypeText)}}}

	data, err := loc.LocalData(ctx, table, Options{})
	assert.NoError(t, err)
	assert.Nil(t, data)

	_, err = loc.WriteLocalData(ctx, table, nil, Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	err = loc.DirectTransfer(ctx, table, fake(KindS3, "s3://b/"), Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestParseIfExists(t *testing.T) {
	tests := []struct {
		in      string
		want    IfExists
		wantErr bool
	}{
		{"error", IfExistsError, false},
		{"", IfExistsError, false},
		{"Append", IfExistsAppend, false},
		{"overwrite", IfExistsOverwrite, false},
		{"replace", IfExistsError, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIfExists(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.Equal(t, tt.want.String(), got.String())
			}
		})
	}

	var v IfExists
	require.NoError(t, v.Set("overwrite"))
	assert.Equal(t, IfExistsOverwrite, v)
}

func TestDriverArgs(t *testing.T) {
	args, err := ParseDriverArgs([]string{"location=US", "dsn=user:pw@host/db?x=y"})
	require.NoError(t, err)
	assert.Equal(t, "US", args.Get("location", ""))
	assert.Equal(t, "user:pw@host/db?x=y", args.Get("dsn", ""))
	assert.Equal(t, "def", args.Get("missing", "def"))
	assert.Equal(t, []string{"dsn", "location"}, args.Keys())

	_, err = ParseDriverArgs([]string{"novalue"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestQuery(t *testing.T) {
	assert.NoError(t, Query{}.RejectUnless(KindCSV))
	assert.True(t, errors.IsType(Query{Where: "id > 1"}.RejectUnless(KindCSV), errors.ErrorTypeCapability))
}

func TestTemporaryStorage(t *testing.T) {
	temp, err := NewTemporaryStorage([]string{"gs://bucket/tmp", "s3://other/scratch/", " "})
	require.NoError(t, err)
	assert.Len(t, temp.Locations(), 2)

	run := temp.ForRun("abc")
	gs, err := run.Resolve(KindGS)
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/tmp/abc/", gs)

	s3, ok := run.Find(KindS3)
	require.True(t, ok)
	assert.Equal(t, "s3://other/scratch/abc/", s3)

	_, err = run.Resolve(KindBigQuery)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	var none *TemporaryStorage
	_, err = none.Resolve(KindGS)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	_, err = NewTemporaryStorage([]string{"nowhere"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}
