// Package bandwidth throttles transfers against one token bucket shared by
// every concurrent reader and writer, so bandwidth_limit caps the aggregate
// rate no matter how many files are in flight.
package bandwidth

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/cloudboss/cloudboss/internal/config"
)

// burstSeconds sizes the bucket as this many seconds of traffic.
const burstSeconds = 2

// Limiter is the shared bucket. A nil *Limiter means unlimited and every
// method accepts it.
type Limiter struct {
	bucket *rate.Limiter
}

// New builds a limiter from a bandwidth_limit value such as "5MB/s". An
// empty or zero limit returns nil.
func New(limit string, logger *slog.Logger) (*Limiter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	perSec, err := config.ParseRate(limit)
	if err != nil {
		return nil, fmt.Errorf("bandwidth: %w", err)
	}

	if perSec == 0 {
		return nil, nil //nolint:nilnil // nil limiter = unlimited
	}

	burst := int(perSec) * burstSeconds

	logger.Info("bandwidth limit enabled",
		slog.Int64("bytes_per_sec", perSec),
		slog.Int("burst", burst),
	)

	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSec), burst)}, nil
}

// WrapReader throttles reads from r. A nil l returns r itself.
func (l *Limiter) WrapReader(ctx context.Context, r io.Reader) io.Reader {
	if l == nil {
		return r
	}

	return &throttled{ctx: ctx, bucket: l.bucket, r: r}
}

// WrapWriter throttles writes to w. A nil l returns w itself.
func (l *Limiter) WrapWriter(ctx context.Context, w io.Writer) io.Writer {
	if l == nil {
		return w
	}

	return &throttled{ctx: ctx, bucket: l.bucket, w: w}
}

// throttled charges the bucket for bytes after they move, in either
// direction. Exactly one of r and w is set.
type throttled struct {
	ctx    context.Context
	bucket *rate.Limiter
	r      io.Reader
	w      io.Writer
}

func (t *throttled) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)

	return n, t.charge(n, err)
}

func (t *throttled) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)

	return n, t.charge(n, err)
}

// charge waits for n tokens. WaitN rejects requests above the burst, so
// large transfers are charged in burst-sized pieces.
func (t *throttled) charge(n int, err error) error {
	for n > 0 {
		take := min(n, t.bucket.Burst())

		if waitErr := t.bucket.WaitN(t.ctx, take); waitErr != nil {
			return waitErr
		}

		n -= take
	}

	return err
}
