package feed_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomin-app/tomin-web/feed"
)

func TestSSETransportStreamsFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user-1", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		io.WriteString(w, ": keep-alive comment\n\n")
		io.WriteString(w, "data: {\"type\": \"UPLOAD_COMPLETE\", \"message\": \"statement ready\"}\n\n")
		flusher.Flush()
		io.WriteString(w, "data: {\"type\": \"HEARTBEAT\"}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	transport := &feed.SSETransport{BaseURL: server.URL, Credential: "tok"}
	conn, err := transport.Connect(context.Background(), "user-1")
	require.NoError(t, err)
	defer conn.Close()

	event, err := conn.Next()
	require.NoError(t, err)
	assert.Equal(t, feed.EventUploadComplete, event.Type)
	assert.Equal(t, "statement ready", event.Message)

	event, err = conn.Next()
	require.NoError(t, err)
	assert.Equal(t, "HEARTBEAT", event.Type)

	_, err = conn.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSETransportMalformedFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: not-json\n\n")
	}))
	defer server.Close()

	transport := &feed.SSETransport{BaseURL: server.URL}
	conn, err := transport.Connect(context.Background(), "user-1")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Next()
	assert.Error(t, err)
}

func TestSSETransportRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transport := &feed.SSETransport{BaseURL: server.URL}
	_, err := transport.Connect(context.Background(), "user-1")
	assert.Error(t, err)
}
