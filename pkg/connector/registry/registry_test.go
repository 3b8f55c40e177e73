package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
)

type testLocator struct {
	locator.Base
	s string
}

func (l testLocator) String() string { return l.s }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	d := Driver{
		Kind: locator.KindCSV,
		Parse: func(s string) (locator.Locator, error) {
			if s == "csv:" {
				return nil, errors.New(errors.ErrorTypeValidation, "empty path")
			}
			return testLocator{Base: locator.NewBase(locator.KindCSV), s: s}, nil
		},
	}
	require.NoError(t, r.Register(d))
	assert.True(t, errors.IsType(r.Register(d), errors.ErrorTypeConfig))
	assert.True(t, r.Has(locator.KindCSV))

	loc, err := r.Parse("csv:data/users.csv")
	require.NoError(t, err)
	assert.Equal(t, "csv:data/users.csv", loc.String())
	assert.Equal(t, locator.KindCSV, loc.Kind())

	_, err = r.Parse("csv:")
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	_, err = r.Parse("nope:x")
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	_, err = r.Parse("no-scheme")
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	require.Len(t, r.Drivers(), 1)
}
