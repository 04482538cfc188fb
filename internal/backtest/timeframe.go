package backtest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"backtest-lab/internal/domain"
)

// ParseTimeframe parses a bar interval such as "30s", "5m", "1h", "1d" or "1w".
// An empty string returns 0, meaning the stored resolution is kept.
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var d time.Duration
	switch unit := s[len(s)-1]; unit {
	case 'd', 'w':
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("%w: timeframe %q", domain.ErrInvalidConfiguration, s)
		}
		d = time.Duration(n) * 24 * time.Hour
		if unit == 'w' {
			d *= 7
		}
	default:
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: timeframe %q", domain.ErrInvalidConfiguration, s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: timeframe %q must be positive", domain.ErrInvalidConfiguration, s)
	}
	return d, nil
}
