package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RangeResponse describes the outcome of a ranged GET
type RangeResponse struct {
	Body       io.ReadCloser
	StatusCode int
	// TotalBytes is the full asset size: Content-Length for a 200,
	// the Content-Range total for a 206, -1 when the server reports neither
	TotalBytes int64
	// Resumed is true when the server honored the Range header with a 206
	Resumed bool
}

// SupportsResume checks if a URL supports HTTP Range requests
func SupportsResume(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (bool, int64, error) {
	client := GetStreamingClient()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to create HEAD request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("HEAD request failed: %w", err)
	}
	defer resp.Body.Close()

	supportsRange := resp.Header.Get("Accept-Ranges") == "bytes"

	return supportsRange, resp.ContentLength, nil
}

// FetchRange issues a GET for url, requesting bytes from offset onward when
// offset > 0. The caller owns the response body.
func FetchRange(ctx context.Context, client *http.Client, url string, offset int64, headers map[string]string) (*RangeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the Range header (or none was sent); full body follows
		total := resp.ContentLength
		if total < 0 {
			total = -1
		}
		return &RangeResponse{Body: resp.Body, StatusCode: resp.StatusCode, TotalBytes: total, Resumed: false}, nil

	case http.StatusPartialContent:
		total := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		return &RangeResponse{Body: resp.Body, StatusCode: resp.StatusCode, TotalBytes: total, Resumed: true}, nil

	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// parseContentRangeTotal extracts the total size from a
// "bytes <start>-<end>/<total>" header value; returns -1 when absent or "*"
func parseContentRangeTotal(value string) int64 {
	if value == "" {
		return -1
	}

	value = strings.TrimPrefix(value, "bytes ")
	idx := strings.LastIndex(value, "/")
	if idx < 0 {
		return -1
	}

	totalPart := value[idx+1:]
	if totalPart == "*" {
		return -1
	}

	total, err := strconv.ParseInt(totalPart, 10, 64)
	if err != nil {
		return -1
	}

	return total
}
