package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetch_ParsesDocumentAndSendsUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><body><h1 id="title">hello</h1></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{})
	defer f.Close()

	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "hello", doc.Find("#title").Text())
	require.Equal(t, DefaultUserAgent, gotUA.Load())
}

func TestFetch_NonOKStatusIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{})
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), srv.URL)
}

func TestFetch_CanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	// Short request timeout so the parked handler unblocks srv.Close quickly.
	f := New(Config{Timeout: 200 * time.Millisecond})
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

type blockingPacer struct{ err error }

func (p *blockingPacer) Wait(context.Context, string) error { return p.err }

func TestFetch_PacerErrorShortCircuits(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	limit := errors.New("over limit")
	f := New(Config{Pacer: &blockingPacer{err: limit}})
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, limit)
	require.Zero(t, hits.Load())
}
