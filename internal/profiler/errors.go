package profiler

import "errors"

var (
	// ErrCounterUnavailable reports that a Source does not expose the requested counter.
	ErrCounterUnavailable = errors.New("counter unavailable")
	// ErrSamplerClosed reports a read from a sampler after Close.
	ErrSamplerClosed = errors.New("sampler closed")
	// ErrCounterExists reports a duplicate (category, name) registration.
	ErrCounterExists = errors.New("counter already registered")
)
