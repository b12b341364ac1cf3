// Package efa wraps the EFA (Elektronische Fahrplanauskunft)
// journey-planning stop-finder and departure-monitor endpoints: a
// per-stop fetch, a bounded-concurrency batch fan-out, and a compact
// station+platform extraction used to seed station coordinates.
package efa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tramsync.dev/tramsync/downloader"
)

const (
	defaultBaseURL      = "https://bahnland-bayern.de/efa"
	dmPath              = "/XML_DM_REQUEST"
	stopfinderPath      = "/XML_STOPFINDER_REQUEST"
	tramProductClass    = 4
	busProductClass     = 6
	defaultBatchWorkers = 8
	requestTimeout      = 200 * time.Second
	stationCacheTTL     = time.Hour
)

// uncachedGetter is the zero-value Downloader: a plain HTTP GET with
// no caching, used as the default transport and satisfying
// downloader.Downloader without pulling in the filesystem cache. Once
// WithDownloader installs another Downloader, every request (the
// departure monitor included) goes through that one instead; departure
// monitor requests are always made with caching off, so live vehicle
// data is never served stale.
type uncachedGetter struct{}

func (uncachedGetter) Get(ctx context.Context, requestURL string, headers map[string]string, options downloader.GetOptions) ([]byte, error) {
	client := &http.Client{Timeout: options.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building efa request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("efa request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efa status %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading efa response: %w", err)
	}
	return body, nil
}

// Client fetches EFA departures/arrivals and station metadata. Every
// request goes through a downloader.Downloader, so station/stop-finder
// lookups (which change rarely) can be served from an on-disk cache,
// while the live departure monitor always bypasses it.
type Client struct {
	baseURL      string
	getter       downloader.Downloader
	log          *zap.SugaredLogger
	batchWorkers int
}

// NewClient builds a Client against the default Bahnland Bayern EFA
// deployment. Each request has a 200s overall timeout, the same
// overall limit as the OSM client; there is no separate connect
// timeout. Requests are uncached until WithDownloader installs a
// caching Downloader.
func NewClient(log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:      defaultBaseURL,
		getter:       uncachedGetter{},
		log:          log,
		batchWorkers: defaultBatchWorkers,
	}
}

// WithBaseURL overrides the EFA deployment base URL, e.g. for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// WithDownloader swaps in a caching Downloader (e.g. downloader.Filesystem)
// for the station/stop-finder lookups. The departure monitor itself
// never caches, regardless of this setting.
func (c *Client) WithDownloader(d downloader.Downloader) *Client {
	c.getter = d
	return c
}

// GetDepartures fetches the departure monitor for one stop.
func (c *Client) GetDepartures(ctx context.Context, stationID string, limit int, useRealtime, tramOnly bool) (*EfaDepartureMonitorResponse, error) {
	return c.getMonitor(ctx, stationID, limit, useRealtime, tramOnly, false)
}

// GetArrivals is GetDepartures with itdDateTimeDepArr=arr.
func (c *Client) GetArrivals(ctx context.Context, stationID string, limit int, useRealtime, tramOnly bool) (*EfaDepartureMonitorResponse, error) {
	return c.getMonitor(ctx, stationID, limit, useRealtime, tramOnly, true)
}

func (c *Client) getMonitor(ctx context.Context, stationID string, limit int, useRealtime, tramOnly, arrivals bool) (*EfaDepartureMonitorResponse, error) {
	q := url.Values{}
	q.Set("mode", "direct")
	q.Set("name_dm", stationID)
	q.Set("type_dm", "stop")
	q.Set("depType", "stopEvents")
	q.Set("outputFormat", "rapidJSON")
	q.Set("limit", fmt.Sprintf("%d", limit))
	if useRealtime {
		q.Set("useRealtime", "1")
	}
	if tramOnly {
		q.Set("includedMeans", fmt.Sprintf("%d", tramProductClass))
	}
	if arrivals {
		q.Set("itdDateTimeDepArr", "arr")
	}

	var resp EfaDepartureMonitorResponse
	if err := c.getJSON(ctx, dmPath, q, false, &resp); err != nil {
		return nil, fmt.Errorf("fetching departure monitor for %s: %w", stationID, err)
	}
	return &resp, nil
}

// GetStationInfo fetches a departure monitor response tuned to surface
// the full stop sequence and platform detail for one station. Cached:
// a station's stop sequence and platform layout rarely change.
func (c *Client) GetStationInfo(ctx context.Context, stationID string) (*EfaDepartureMonitorResponse, error) {
	q := url.Values{}
	q.Set("mode", "direct")
	q.Set("name_dm", stationID)
	q.Set("type_dm", "stop")
	q.Set("depType", "stopEvents")
	q.Set("outputFormat", "rapidJSON")
	q.Set("includeCompleteStopSeq", "1")
	q.Set("useRealtime", "1")
	q.Set("limit", "1")
	q.Set("includedMeans", fmt.Sprintf("%d", tramProductClass))
	q.Set("coordOutputFormat", "EPSG:4326")

	var resp EfaDepartureMonitorResponse
	if err := c.getJSON(ctx, dmPath, q, true, &resp); err != nil {
		return nil, fmt.Errorf("fetching station info for %s: %w", stationID, err)
	}
	return &resp, nil
}

// SearchStations queries the stop-finder for a free-text name. Cached.
func (c *Client) SearchStations(ctx context.Context, searchTerm string) ([]EfaLocation, error) {
	q := url.Values{}
	q.Set("outputFormat", "rapidJSON")
	q.Set("type_sf", "any")
	q.Set("name_sf", searchTerm)

	var resp EfaStopFinderResponse
	if err := c.getJSON(ctx, stopfinderPath, q, true, &resp); err != nil {
		return nil, fmt.Errorf("searching stations for %q: %w", searchTerm, err)
	}
	return resp.Locations, nil
}

// GetAllStops fetches every stop in a city/area, optionally filtered
// to tram-serviced stops only (productClass 4). Cached.
func (c *Client) GetAllStops(ctx context.Context, cityName string, tramOnly bool) ([]EfaLocation, error) {
	q := url.Values{}
	q.Set("outputFormat", "rapidJSON")
	q.Set("type_sf", "any")
	q.Set("name_sf", cityName)
	q.Set("anyObjFilter_sf", "2")
	q.Set("coordOutputFormat", "WGS84[DD.ddddd]")

	var resp EfaStopFinderResponse
	if err := c.getJSON(ctx, stopfinderPath, q, true, &resp); err != nil {
		return nil, fmt.Errorf("fetching stops for %q: %w", cityName, err)
	}

	if !tramOnly {
		return resp.Locations, nil
	}

	var stops []EfaLocation
	for _, loc := range resp.Locations {
		for _, class := range loc.ProductClasses {
			if class == tramProductClass {
				stops = append(stops, loc)
				break
			}
		}
	}
	return stops, nil
}

// GetDeparturesBatch fans out GetDepartures over the given IFOPTs with
// a bounded worker count. Order of results is not guaranteed.
func (c *Client) GetDeparturesBatch(ctx context.Context, ifopts []string, limit int, useRealtime bool) []BatchResult {
	results := make([]BatchResult, len(ifopts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchWorkers)

	for i, ifopt := range ifopts {
		i, ifopt := i, ifopt
		g.Go(func() error {
			monitor, err := c.GetDepartures(ctx, ifopt, limit, useRealtime, false)
			results[i] = BatchResult{IFOPT: ifopt, Monitor: monitor, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, cacheable bool, out interface{}) error {
	u := c.baseURL + path + "?" + q.Encode()

	body, err := c.getter.Get(ctx, u, nil, downloader.GetOptions{
		Timeout:  requestTimeout,
		Cache:    cacheable,
		CacheTTL: stationCacheTTL,
	})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.log.Errorw("failed to decode efa response", "url", u, "error", err)
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
