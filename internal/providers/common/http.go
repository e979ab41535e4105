package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	maxErrorBody   = 2048
	maxPayloadSize = 4 * 1024 * 1024
)

// Get issues a GET with the given headers and returns the body of a 200
// response. Other statuses become an error carrying a prefix of the body.
func Get(ctx context.Context, client *http.Client, uri string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
}

// HTTPStatusError is returned for non-200 upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider HTTP %d: %s", e.StatusCode, e.Body)
}
