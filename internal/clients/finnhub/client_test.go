package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHistory_AlwaysEmpty(t *testing.T) {
	// No server: the free tier has no candle access, so the client must not
	// make a request at all.
	client := NewClient("test-key", WithBaseURL("http://127.0.0.1:1"))

	bars, err := client.FetchHistory(context.Background(), "TQQQ", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "TQQQ", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		w.Write([]byte(`{"c":55.5,"h":56.2,"l":54.8,"o":55.0,"pc":55.1}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	quote, err := client.FetchQuote(context.Background(), "TQQQ")
	require.NoError(t, err)
	assert.Equal(t, 55.5, quote.Price)
	assert.Equal(t, 55.0, quote.Open)
	assert.Equal(t, 56.2, quote.High)
	assert.Equal(t, 54.8, quote.Low)
}

func TestFetchQuote_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	quote, err := client.FetchQuote(context.Background(), "TQQQ")
	require.NoError(t, err, "an auth failure must degrade to a zero quote")
	assert.True(t, quote.IsZero())
}

func TestFetchQuote_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	quote, err := client.FetchQuote(context.Background(), "TQQQ")
	require.NoError(t, err)
	assert.True(t, quote.IsZero())
}
