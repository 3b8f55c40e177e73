package locator

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// LoadFunc starts loading one CSV stream and returns its completion handle
type LoadFunc func(ctx context.Context, s *stream.CsvStream) *bridge.Future[struct{}]

// LoadEach feeds data to load one stream at a time: the next stream is not
// pulled until the previous load has finished, so rows of earlier streams
// are committed before later ones begin. Cancellation is checked before each
// stream starts. The returned stream yields one handle per input stream.
func LoadEach(ctx context.Context, data *stream.Stream[*stream.CsvStream], load LoadFunc) *stream.Stream[*bridge.Future[struct{}]] {
	return stream.Generate(ctx, func(ctx context.Context, emit stream.Emit[*bridge.Future[struct{}]]) error {
		return stream.ForEach(ctx, data, func(s *stream.CsvStream) error {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeCancelled, "cancelled before loading stream").
					WithDetail("stream", s.Name)
			}
			sctx := logger.With(ctx, zap.String("stream", s.Name))
			logger.FromContext(sctx).Debug("loading stream")

			f := load(sctx, s)
			if err := emit(f); err != nil {
				return err
			}
			if _, err := f.Wait(sctx); err != nil {
				if e := (*errors.Error)(nil); errors.As(err, &e) && e.Details["stream"] == nil {
					e.WithDetail("stream", s.Name)
				}
				return err
			}
			return nil
		})
	})
}
