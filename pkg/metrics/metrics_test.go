package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

func TestObserveTransfer(t *testing.T) {
	before := testutil.ToFloat64(TransfersTotal.WithLabelValues("csv", "postgres", PathStaged, "success"))
	ObserveTransfer("csv", "postgres", PathStaged, time.Now(), nil)
	after := testutil.ToFloat64(TransfersTotal.WithLabelValues("csv", "postgres", PathStaged, "success"))
	assert.Equal(t, before+1, after)

	ObserveTransfer("csv", "postgres", PathStaged, time.Now(), errors.New(errors.ErrorTypeSchema, "array column"))
	assert.Equal(t, float64(1), testutil.ToFloat64(TransfersTotal.WithLabelValues("csv", "postgres", PathStaged, "schema")))
}

func TestObserveStream(t *testing.T) {
	before := testutil.ToFloat64(BytesLoaded.WithLabelValues("mysql"))
	ObserveStream("mysql", 128, nil)
	ObserveStream("mysql", 0, errors.New(errors.ErrorTypeQuery, "failed"))
	assert.Equal(t, before+128, testutil.ToFloat64(BytesLoaded.WithLabelValues("mysql")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(StreamsLoaded.WithLabelValues("mysql", "query")), float64(1))
}

func TestTrackCall(t *testing.T) {
	before := testutil.ToFloat64(BackgroundCalls)
	done := TrackCall()
	assert.Equal(t, before+1, testutil.ToFloat64(BackgroundCalls))
	done()
	assert.Equal(t, before, testutil.ToFloat64(BackgroundCalls))
}
