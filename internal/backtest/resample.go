package backtest

import (
	"time"

	"backtest-lab/internal/domain"
)

var epoch = time.Unix(0, 0).UTC()

// bucketStart floors ts to a multiple of d counted from the Unix epoch.
// time.Truncate counts from year 1, which shifts weekly and 7h buckets.
func bucketStart(ts time.Time, d time.Duration) time.Time {
	off := ts.Sub(epoch)
	n := off / d
	if off%d < 0 {
		n--
	}
	return epoch.Add(n * d)
}

// Resample groups ascending bars into buckets of width d aligned to the Unix epoch.
// Each bucket takes the first open, the max high, the min low, the last close and
// the summed volume; its timestamp is the bucket start. Empty buckets are skipped.
func Resample(bars []domain.PriceBar, d time.Duration) []domain.PriceBar {
	if d <= 0 || len(bars) == 0 {
		return bars
	}

	out := make([]domain.PriceBar, 0, len(bars))
	var cur domain.PriceBar
	var open bool
	for _, b := range bars {
		start := bucketStart(b.Timestamp, d)
		if open && start.Equal(cur.Timestamp) {
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		if open {
			out = append(out, cur)
		}
		cur = b
		cur.Timestamp = start
		open = true
	}
	return append(out, cur)
}
