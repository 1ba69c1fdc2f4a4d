package service

import "time"

// DefaultLockDuration is how long a freshly bought lot cannot be sold.
const DefaultLockDuration = 24 * time.Hour

// DefaultGrant is the starting balance of a new player: 1 BTC.
const DefaultGrant int64 = 100_000_000

// Clock is the time source used for lot locks and trade timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = systemClock{}

type Option func(*options)

type options struct {
	clock        Clock
	lockDuration time.Duration
	cache        HoldingsCache
}

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLockDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockDuration = d
		}
	}
}

// WithCache sets the cache invalidated after each committed write.
func WithCache(c HoldingsCache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock, lockDuration: DefaultLockDuration, cache: NopCache{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
