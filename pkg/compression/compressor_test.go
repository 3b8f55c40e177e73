package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromName(t *testing.T) {
	assert.Equal(t, Gzip, FromName("users.csv.gz"))
	assert.Equal(t, Zstd, FromName("users.csv.zst"))
	assert.Equal(t, Snappy, FromName("users.csv.sz"))
	assert.Equal(t, S2, FromName("users.csv.s2"))
	assert.Equal(t, LZ4, FromName("users.csv.lz4"))
	assert.Equal(t, None, FromName("users.csv"))

	assert.Equal(t, "users.csv", TrimSuffix("users.csv.gz"))
	assert.Equal(t, "users.csv", TrimSuffix("users.csv"))
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)

	alg, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)
}

func TestStreamRoundTrip(t *testing.T) {
	input := strings.Repeat("id,name,created_at\n1,alice,2020-01-01T00:00:00Z\n", 5000)

	for _, alg := range []Algorithm{None, Gzip, Zstd, Snappy, S2, LZ4} {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(alg), func(t *testing.T) {
				var compressed bytes.Buffer
				w, err := NewWriter(alg, &compressed, level)
				require.NoError(t, err)
				_, err = io.Copy(w, strings.NewReader(input))
				require.NoError(t, err)
				require.NoError(t, w.Close())

				if alg != None {
					assert.Less(t, compressed.Len(), len(input))
				}

				r, err := NewReader(alg, &compressed)
				require.NoError(t, err)
				out, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, input, string(out))
			})
		}
	}
}

func TestNewReader_InvalidGzip(t *testing.T) {
	_, err := NewReader(Gzip, strings.NewReader("not gzip"))
	assert.Error(t, err)
}
