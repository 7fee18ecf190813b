package http

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientWithRetryBoundsEachAttempt(t *testing.T) {
	c := NewClientWithRetry(5 * time.Second)

	rt, ok := c.base.Transport.(*retryablehttp.RoundTripper)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, rt.Client.HTTPClient.Timeout)
}

func TestPostRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(nethttp.Client{})
	_, err := c.Post(context.Background(), srv.URL, []byte(`{}`))
	require.Error(t, err)
}
