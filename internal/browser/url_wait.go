package browser

import (
	"context"
	"fmt"
	"time"
)

const urlPollInterval = 100 * time.Millisecond

// urlReader reads the current page URL.
type urlReader func(ctx context.Context) (string, error)

// pollURL reads the URL every interval until it equals expected or ctx ends.
// Read errors are transient: a document being replaced by a navigation
// cannot answer until the new one commits. On timeout it returns the last
// URL it saw together with the context error.
func pollURL(ctx context.Context, read urlReader, expected string, interval time.Duration) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	var lastErr error
	for {
		current, err := read(ctx)
		if err == nil {
			last = current
			if current == expected {
				return current, nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if last == "" && lastErr != nil {
				return last, fmt.Errorf("%w (last read error: %v)", ctx.Err(), lastErr)
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
