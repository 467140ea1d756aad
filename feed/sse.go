package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSETransport consumes the backend's text/event-stream notification
// endpoint. Each frame is a "data: {json}" line followed by a blank line.
type SSETransport struct {
	// BaseURL of the notification stream, e.g.
	// "http://localhost:8000/api/notifications"; the subject id is
	// appended as the final path segment.
	BaseURL string
	// Credential is attached as a bearer token when set.
	Credential string
	// Client must not carry a timeout; the stream is long-lived.
	Client *http.Client
}

func (t *SSETransport) Connect(ctx context.Context, subject string) (Conn, error) {
	httpClient := t.Client
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	url := strings.TrimRight(t.BaseURL, "/") + "/" + subject
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+t.Credential)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("feed: stream returned status %d", resp.StatusCode)
	}

	return &sseConn{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

type sseConn struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (c *sseConn) Next() (Event, error) {
	for c.scanner.Scan() {
		line := c.scanner.Text()
		// Blank separators, comments and field names other than data are
		// part of the stream grammar but carry no payload.
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return Event{}, fmt.Errorf("feed: malformed frame: %w", err)
		}
		return event, nil
	}

	if err := c.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (c *sseConn) Close() error {
	return c.body.Close()
}
