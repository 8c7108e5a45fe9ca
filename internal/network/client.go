// Package network provides the pooled HTTP clients and ranged-transfer
// helpers shared by the api client and the offline downloader.
package network

import (
	"net/http"
	"sync"
	"time"
)

var (
	defaultClient       *http.Client
	defaultClientOnce   sync.Once
	streamingClient     *http.Client
	streamingClientOnce sync.Once
)

// ClientConfig holds transport tuning for an HTTP client. The daemon talks
// to a single media server, so the pools are sized for one host.
type ClientConfig struct {
	// Timeout bounds the whole request including the body. Zero means no
	// overall deadline; cancellation is then the caller's context.
	Timeout               time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	ExpectContinueTimeout time.Duration
}

// DefaultClientConfig returns tuning for short JSON API calls.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:               30 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// StreamingClientConfig returns tuning for ranged audio transfers. A track
// body can stream for minutes, so there is no overall timeout: the server
// must answer headers promptly and the caller cancels via context.
func StreamingClientConfig() *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = 0
	cfg.ResponseHeaderTimeout = 60 * time.Second
	cfg.IdleConnTimeout = 120 * time.Second
	return cfg
}

// NewClient creates an HTTP client with pooled connections per config
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// GetDefaultClient returns the shared client for API calls
func GetDefaultClient() *http.Client {
	defaultClientOnce.Do(func() {
		defaultClient = NewClient(DefaultClientConfig())
	})
	return defaultClient
}

// GetStreamingClient returns the shared client for track and artwork
// transfers
func GetStreamingClient() *http.Client {
	streamingClientOnce.Do(func() {
		streamingClient = NewClient(StreamingClientConfig())
	})
	return streamingClient
}
