// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Use a tiny base delay so tests finish quickly.
	ReadyBaseDelay = 1 * time.Millisecond
}

func TestWaitReady_ImmediateAnswer(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer ts.Close()

	err := WaitReady(context.Background(), ts.Client(), ts.URL)
	require.NoError(t, err)

	// Any HTTP status counts as ready, including 405 on the generate endpoint.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWaitReady_ServerComesUpLate(t *testing.T) {
	// Reserve an address, then leave it closed for the first probes.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	started := make(chan *httptest.Server, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			started <- nil
			return
		}
		ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		ts.Listener.Close()
		ts.Listener = ln
		ts.Start()
		started <- ts
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = WaitReady(ctx, &http.Client{Timeout: time.Second}, "http://"+addr+"/generate")
	require.NoError(t, err)

	if ts := <-started; ts != nil {
		ts.Close()
	}
}

func TestWaitReady_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nothing listens on this port; the wait must end with the context.
	err := WaitReady(ctx, &http.Client{Timeout: 50 * time.Millisecond}, "http://127.0.0.1:1/generate")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "not ready")
}
