// Package stream talks to the managed video streaming platform.
package stream

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/streamhall/backend/internal/logging"
	"github.com/streamhall/backend/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	tusVersion     = "1.0.0"
	mediaIDHeader  = "stream-media-id"
	breakerName    = "stream-api"
	maxErrorBody   = 4 << 10
	defaultTimeout = 15 * time.Second
)

var (
	// ErrUpstream indicates the platform rejected the request or answered unusably.
	ErrUpstream = errors.New("stream: upstream error")
	// ErrNotConfigured indicates the account id or API token is missing.
	ErrNotConfigured = errors.New("stream: client not configured")
	// ErrInvalidRequest indicates the caller supplied an unusable upload request.
	ErrInvalidRequest = errors.New("stream: invalid upload request")
)

// Config holds platform credentials.
type Config struct {
	BaseURL   string
	AccountID string
	APIToken  string
	Timeout   time.Duration
}

// UploadRequest describes a resumable direct-creator upload.
type UploadRequest struct {
	SizeBytes int64
	Name      string
	Creator   string
}

// UploadSlot is the platform's answer: where the client uploads, and the asset id.
type UploadSlot struct {
	UploadURL string
	MediaID   string
}

// Client creates upload slots at the streaming platform.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[UploadSlot]
}

// NewClient constructs a Client. A nil httpClient gets a client with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[UploadSlot](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidRequest) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Client{cfg: cfg, http: httpClient, breaker: breaker}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.AccountID != "" && c.cfg.APIToken != ""
}

// CreateDirectUpload reserves a resumable upload at the platform. The asset is
// created with signed playback URLs required.
func (c *Client) CreateDirectUpload(ctx context.Context, req UploadRequest) (UploadSlot, error) {
	if !c.Configured() {
		return UploadSlot{}, ErrNotConfigured
	}

	slot, err := c.breaker.Execute(func() (UploadSlot, error) {
		return c.createDirectUpload(ctx, req)
	})
	switch {
	case err == nil:
		metrics.PlatformRequests.WithLabelValues("create_upload", "success").Inc()
		return slot, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.PlatformRequests.WithLabelValues("create_upload", "rejected").Inc()
		return UploadSlot{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	default:
		metrics.PlatformRequests.WithLabelValues("create_upload", "failure").Inc()
		return UploadSlot{}, err
	}
}

func (c *Client) createDirectUpload(ctx context.Context, req UploadRequest) (UploadSlot, error) {
	if req.SizeBytes <= 0 {
		return UploadSlot{}, fmt.Errorf("%w: size must be positive", ErrInvalidRequest)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/stream?direct_user=true", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return UploadSlot{}, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	httpReq.Header.Set("Tus-Resumable", tusVersion)
	httpReq.Header.Set("Upload-Length", strconv.FormatInt(req.SizeBytes, 10))
	httpReq.Header.Set("Upload-Metadata", EncodeMetadata(req.Name))
	if req.Creator != "" {
		httpReq.Header.Set("Upload-Creator", req.Creator)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return UploadSlot{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logging.FromContext(ctx).Error("stream api rejected upload request",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return UploadSlot{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	slot := UploadSlot{
		UploadURL: strings.TrimSpace(resp.Header.Get("Location")),
		MediaID:   strings.TrimSpace(resp.Header.Get(mediaIDHeader)),
	}
	if slot.UploadURL == "" || slot.MediaID == "" {
		return UploadSlot{}, fmt.Errorf("%w: response missing location or media id", ErrUpstream)
	}

	return slot, nil
}

// EncodeMetadata renders the tus Upload-Metadata header for an asset name.
func EncodeMetadata(name string) string {
	return "name " + base64.StdEncoding.EncodeToString([]byte(name)) + ", requiresignedurls"
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
