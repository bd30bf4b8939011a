package simulator

import (
	"time"

	"github.com/sarchlab/cachesim/logging"
)

type options struct {
	logger           *logging.Logger
	progressInterval time.Duration
	pageStats        bool
}

// Option configures a Simulator.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           logging.Noop(),
		progressInterval: 10 * time.Second,
		pageStats:        true,
	}
}

// WithLogger sets the logger. A nil logger discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = logging.Noop()
		}

		o.logger = l
	}
}

// WithProgressInterval sets the minimum time between progress log lines.
// Zero disables progress logging.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

// WithPageStats turns the page usage histograms on or off. They are on by
// default for the cache simulator and never used by the TLB simulator.
func WithPageStats(enabled bool) Option {
	return func(o *options) {
		o.pageStats = enabled
	}
}
