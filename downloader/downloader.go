// Package downloader provides the small Downloader contract shared by
// the EFA station-finder client: implementations fetch a URL's body,
// optionally caching it. Filesystem (this package) is the caching
// implementation; efa.Client supplies its own uncached implementation
// directly, since a plain GET has no shared logic worth a separate
// exported helper once the cache concern is split out.
package downloader

import (
	"context"
	"time"
)

// GetOptions controls how a Downloader fetches a URL. MaxSize and
// Timeout govern the underlying request; Cache and CacheTTL are only
// meaningful to caching implementations such as Filesystem.
type GetOptions struct {
	MaxSize  int
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration
}

// Downloader fetches a URL's body, optionally caching the result.
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}
