// Package resolver turns an image URL into its perimeter metric.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	// Registered image formats for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cuongbtq/visit-metrics/internal/domain"
)

// DefaultFetchTimeout bounds a single image download
const DefaultFetchTimeout = 5 * time.Second

// Config holds resolver configuration
type Config struct {
	Logger          *slog.Logger
	HTTPClient      *http.Client
	FetchTimeout    time.Duration
	MaxImageBytes   int64
	SimulateLatency bool
	LatencyMin      time.Duration
	LatencyMax      time.Duration
}

// Resolver fetches images and measures them
type Resolver struct {
	logger          *slog.Logger
	client          *http.Client
	fetchTimeout    time.Duration
	maxImageBytes   int64
	simulateLatency bool
	latencyMin      time.Duration
	latencyMax      time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewResolver creates a new Resolver instance
func NewResolver(cfg *Config) *Resolver {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &Resolver{
		logger:          cfg.Logger,
		client:          client,
		fetchTimeout:    timeout,
		maxImageBytes:   cfg.MaxImageBytes,
		simulateLatency: cfg.SimulateLatency,
		latencyMin:      cfg.LatencyMin,
		latencyMax:      cfg.LatencyMax,
		sleep:           sleepContext,
	}
}

// Resolve downloads the image at url and returns 2*(width+height).
// Every failure is returned as a *domain.ResolveError.
func (r *Resolver) Resolve(ctx context.Context, url string) (int, error) {
	width, height, err := r.fetchDimensions(ctx, url)
	if err != nil {
		return 0, err
	}

	perimeter := Perimeter(width, height)

	if r.simulateLatency {
		delay := r.latency()
		r.logger.Debug("Simulating downstream latency",
			slog.String("image_url", url),
			slog.Duration("delay", delay),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return 0, domain.NewResolveError(domain.ResolveErrorInternal, url, err)
		}
	}

	return perimeter, nil
}

// Perimeter is the metric reported for an image of the given size
func Perimeter(width, height int) int {
	return 2 * (width + height)
}

func (r *Resolver) fetchDimensions(ctx context.Context, url string) (int, int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, domain.NewResolveError(domain.ResolveErrorFetch, url, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, 0, domain.NewResolveError(domain.ResolveErrorFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, 0, &domain.ResolveError{
			Kind:       domain.ResolveErrorStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
		}
	}

	var body io.Reader = resp.Body
	if r.maxImageBytes > 0 {
		body = io.LimitReader(resp.Body, r.maxImageBytes)
	}

	cfg, format, err := image.DecodeConfig(body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, 0, domain.NewResolveError(domain.ResolveErrorFetch, url, err)
		}
		return 0, 0, domain.NewResolveError(domain.ResolveErrorDecode, url, err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, domain.NewResolveError(domain.ResolveErrorDimensions, url, domain.ErrInvalidDimensions)
	}

	r.logger.Debug("Image decoded",
		slog.String("image_url", url),
		slog.String("format", format),
		slog.Int("width", cfg.Width),
		slog.Int("height", cfg.Height),
	)

	return cfg.Width, cfg.Height, nil
}

// latency draws a delay uniformly from [latencyMin, latencyMax]
func (r *Resolver) latency() time.Duration {
	if r.latencyMax <= r.latencyMin {
		return r.latencyMin
	}
	span := int64(r.latencyMax-r.latencyMin) / int64(time.Millisecond)
	return r.latencyMin + time.Duration(rand.Int63n(span+1))*time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("latency simulation interrupted: %w", ctx.Err())
	}
}
