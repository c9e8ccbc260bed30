package database

import (
	"context"
	"time"
)

// Pinger is a dependency that can report its own reachability.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// CheckAll pings every dependency with a shared timeout and returns the failures keyed by name.
func CheckAll(ctx context.Context, timeout time.Duration, deps ...Pinger) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	failures := make(map[string]error)
	for _, d := range deps {
		if d == nil {
			continue
		}
		if err := d.Ping(ctx); err != nil {
			failures[d.Name()] = err
		}
	}
	return failures
}
