package replay

import (
	"hftcore/internal/core"

	"golang.org/x/time/rate"
)

// RateLimitedWriter wraps a Buffer with a back-pressure cap on Add: when
// the configured rate is exceeded, the experience being added is dropped
// rather than blocking the fill hot path. Experiences already in the
// buffer are not removed by the cap.
type RateLimitedWriter struct {
	buf     *Buffer
	limiter *rate.Limiter
	dropped uint64
}

// NewRateLimitedWriter caps inserts at ratePerSec with a burst allowance.
func NewRateLimitedWriter(buf *Buffer, ratePerSec float64, burst int) *RateLimitedWriter {
	return &RateLimitedWriter{
		buf:     buf,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Add inserts exp unless the rate cap is currently exceeded, in which case
// it is dropped and the drop counter increments. Never blocks.
func (w *RateLimitedWriter) Add(exp core.Experience) bool {
	if !w.limiter.Allow() {
		w.dropped++
		return false
	}
	w.buf.Add(exp)
	return true
}

// Dropped reports how many experiences have been shed by back-pressure.
func (w *RateLimitedWriter) Dropped() uint64 { return w.dropped }
