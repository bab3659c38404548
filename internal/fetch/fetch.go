// Package fetch retrieves the source document into memory. There is no
// streaming: patching requires the complete document, and no retry logic
// lives here.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

// Get downloads url and returns the full response body. Any non-200 status,
// transport failure, or empty body is an error.
func Get(url, userAgent string) ([]byte, error) {
	client := &http.Client{Timeout: requestTimeout}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("status %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body from %s", url)
	}
	return data, nil
}

// UserAgent builds the request User-Agent string.
func UserAgent(version string) string {
	return fmt.Sprintf("oglpatch/%s", version)
}
