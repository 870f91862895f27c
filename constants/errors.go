package constants

import "errors"

var (
	ErrDuplicateSubscription = errors.New("aggregator is already subscribed")
	ErrUpstreamFetch         = errors.New("upstream fetch failed")
	ErrNilStream             = errors.New("stream is nil")
	ErrNilStore              = errors.New("projection store is nil")
	ErrSharedStore           = errors.New("projection store is already used by another subscription")
	ErrNilAggregator         = errors.New("aggregator is nil")
	ErrNoReporters           = errors.New("no subscription reported a projection")
	ErrPollerStopped         = errors.New("poller stopped")
	ErrInvalidConfig         = errors.New("invalid configuration")
)
