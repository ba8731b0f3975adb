// Package icon fetches and memoizes conference provider logos.
package icon

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/theakshaypant/today/internal/core"

	"golang.org/x/sync/singleflight"
)

// maxBody caps the size of a downloaded icon.
const maxBody = 4 << 20

// Recorder receives fetch failures.
type Recorder interface {
	Record(where string, err error)
}

// Cache holds successfully decoded icons forever. Failures are never stored,
// so the next Fetch of a failed uri tries the network again.
type Cache struct {
	client   *http.Client
	timeout  time.Duration
	recorder Recorder
	logger   *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	icons map[string]image.Image
}

// Option configures a Cache.
type Option func(*Cache)

func WithHTTPClient(c *http.Client) Option {
	return func(ca *Cache) { ca.client = c }
}

// WithTimeout bounds each network fetch. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) Option {
	return func(ca *Cache) { ca.timeout = d }
}

func WithRecorder(r Recorder) Option {
	return func(ca *Cache) { ca.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(ca *Cache) { ca.logger = l }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		client: http.DefaultClient,
		logger: slog.Default(),
		icons:  make(map[string]image.Image),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns a cached icon without touching the network.
func (c *Cache) Lookup(uri string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.icons[uri]
	return img, ok
}

// Fetch returns the icon for uri, downloading it on a miss. Concurrent
// fetches of one uri share a single request. On failure it returns false;
// the error goes to the recorder and is never returned.
func (c *Cache) Fetch(ctx context.Context, uri string) (image.Image, bool) {
	if uri == "" {
		return nil, false
	}
	if img, ok := c.Lookup(uri); ok {
		return img, true
	}

	v, err, shared := c.group.Do(uri, func() (any, error) {
		// A caller that lost the race may arrive after the winner stored it.
		if img, ok := c.Lookup(uri); ok {
			return img, nil
		}
		img, err := c.download(ctx, uri)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.icons[uri] = img
		c.mu.Unlock()
		return img, nil
	})
	if err != nil {
		c.logger.Debug("icon fetch failed", "uri", uri, "shared", shared, "err", err)
		return nil, false
	}
	return v.(image.Image), true
}

func (c *Cache) download(ctx context.Context, uri string) (image.Image, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	img, err := c.get(ctx, uri)
	if err != nil {
		err = core.Wrap(core.KindFetchNetworkFailure, "fetch icon "+uri, err)
		if c.recorder != nil {
			c.recorder.Record("icon", err)
		}
		return nil, err
	}
	return img, nil
}

func (c *Cache) get(ctx context.Context, uri string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
