// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// ReadyBaseDelay controls the base duration for exponential backoff
// between readiness probes. Tests override this to avoid real sleeps.
var ReadyBaseDelay = 1 * time.Second

const maxProbeDelay = 30 * time.Second

// WaitReady polls url until the server answers, retrying with
// exponential backoff capped at maxProbeDelay. Any HTTP status counts
// as ready: a booting inference server refuses connections outright,
// while an answering one may well return 405 to a bare GET on its
// generate endpoint. The wait ends when ctx is cancelled.
func WaitReady(ctx context.Context, client *http.Client, url string) error {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating probe request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * ReadyBaseDelay
		if backoff > maxProbeDelay {
			backoff = maxProbeDelay
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not ready: %w (last probe: %v)", url, ctx.Err(), err)
		case <-time.After(backoff):
		}
	}
}
