package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

func TestGenerate_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := Generate(ctx, func(ctx context.Context, emit Emit[int]) error {
		for i := 0; i < 100; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
		return nil
	})

	got, err := Collect(ctx, s)
	require.NoError(t, err)
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestGenerate_ErrorAfterItems(t *testing.T) {
	ctx := context.Background()
	boom := errors.New(errors.ErrorTypeData, "boom")
	s := Generate(ctx, func(ctx context.Context, emit Emit[string]) error {
		if err := emit("a"); err != nil {
			return err
		}
		return boom
	})

	item, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", item)

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_StopsWhenConsumerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	s := Generate(ctx, func(ctx context.Context, emit Emit[int]) error {
		for i := 0; ; i++ {
			if err := emit(i); err != nil {
				stopped <- err
				return err
			}
		}
	})

	_, err := s.Next(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case err := <-stopped:
		assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))
	case <-time.After(time.Second):
		t.Fatal("producer did not stop after cancellation")
	}
}

func TestFromSliceAndOnce(t *testing.T) {
	ctx := context.Background()
	got, err := Collect(ctx, FromSlice([]int{3, 1, 2}))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, got)

	one, err := Collect(ctx, Once("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, one)

	_, err = Collect(ctx, Fail[int](fmt.Errorf("nope")))
	assert.EqualError(t, err, "nope")
}

func TestMap(t *testing.T) {
	ctx := context.Background()
	s := Map(ctx, FromSlice([]int{1, 2, 3}), func(i int) (string, error) {
		return strings.Repeat("x", i), nil
	})
	got, err := Collect(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "xx", "xxx"}, got)
}

func TestFromReaderRoundTrip(t *testing.T) {
	ctx := context.Background()
	input := strings.Repeat("id,name\n1,alice\n", 1000)

	s := FromReader(ctx, strings.NewReader(input), 7)
	var out bytes.Buffer
	n, err := CopyTo(ctx, &out, s)
	require.NoError(t, err)
	assert.Equal(t, int64(len(input)), n)
	assert.Equal(t, input, out.String())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestFromReader_Error(t *testing.T) {
	ctx := context.Background()
	_, err := Collect(ctx, FromReader(ctx, failingReader{}, 0))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSkipHeader(t *testing.T) {
	ctx := context.Background()
	in := FromSlice([][]byte{[]byte("id,na"), []byte("me\n1,a"), []byte("\n2,b\n")})
	var out bytes.Buffer
	_, err := CopyTo(ctx, &out, SkipHeader(ctx, in))
	require.NoError(t, err)
	assert.Equal(t, "1,a\n2,b\n", out.String())
}

func TestNameFromPath(t *testing.T) {
	assert.Equal(t, "users", NameFromPath("users.csv"))
	assert.Equal(t, "2020/users", NameFromPath("/2020/users.csv.gz"))
	assert.Equal(t, "data", NameFromPath("data"))
}

func TestDuplicateName(t *testing.T) {
	assert.NoError(t, DuplicateName([]string{"a", "b", "2020/a"}))

	err := DuplicateName([]string{NameFromPath("a.csv"), NameFromPath("a.csv.gz")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.True(t, errors.IsType(DuplicateName([]string{"a", "/a"}), errors.ErrorTypeValidation))
}

func TestUniqueNames(t *testing.T) {
	ctx := context.Background()
	in := FromSlice([]*CsvStream{{Name: "a"}, {Name: "b"}, {Name: "a"}, {Name: "c"}})
	var names []string
	err := ForEach(ctx, UniqueNames(ctx, in), func(cs *CsvStream) error {
		names = append(names, cs.Name)
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Equal(t, []string{"a", "b"}, names)
}
