package serve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitForServer_SucceedsOnceHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := waitForServer(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
}

func TestWaitForServer_TimesOutWhenUnreachable(t *testing.T) {
	err := waitForServer(context.Background(), "http://127.0.0.1:1", 250*time.Millisecond)
	require.Error(t, err)
}

func TestWaitForServer_TimesOutOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := waitForServer(context.Background(), srv.URL, 250*time.Millisecond)
	require.Error(t, err)
}
