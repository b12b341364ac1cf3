// Package osm wraps a public Overpass-API-compatible endpoint: it
// builds bounding-box/transport-type queries, executes them with
// retry/backoff, and resolves the raw elements into model types
// (stations, platforms, stop positions, and fully expanded routes).
package osm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tramsync.dev/tramsync/model"
)

// defaultBaseURL mirrors the original implementation's choice of the
// Kumi Systems mirror over the primary overpass-api.de endpoint,
// which is frequently overloaded.
const defaultBaseURL = "https://overpass.kumi.systems/api/interpreter"

const (
	maxAttempts       = 3
	initialRetryDelay = 5 * time.Second
	interFetchDelay   = 2 * time.Second
)

// Client fetches OSM topology features for a configured Area.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewClient builds a Client against the default public mirror. The
// HTTP client timeout (200s) must exceed the largest embedded Overpass
// QL query timeout (180s for routes).
func NewClient(log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 200 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
			},
		},
		log: log,
	}
}

// WithBaseURL overrides the Overpass endpoint, e.g. for tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// FetchAreaFeatures fetches the four feature sets sequentially with
// ~2s spacing to respect the public endpoint. All four must succeed.
func (c *Client) FetchAreaFeatures(ctx context.Context, area model.Area) (model.AreaFeatures, error) {
	c.log.Infow("fetching stations", "area", area.Name, "transport_types", area.TransportTypes)
	stationElems, err := c.fetchElements(ctx, BuildStationsQuery(area.BoundingBox, area.TransportTypes))
	if err != nil {
		return model.AreaFeatures{}, fmt.Errorf("fetching stations: %w", err)
	}
	c.log.Infow("fetched stations", "count", len(stationElems))

	if err := sleep(ctx, interFetchDelay); err != nil {
		return model.AreaFeatures{}, err
	}

	c.log.Infow("fetching platforms", "area", area.Name)
	platformElems, err := c.fetchElements(ctx, BuildPlatformsQuery(area.BoundingBox, area.TransportTypes))
	if err != nil {
		return model.AreaFeatures{}, fmt.Errorf("fetching platforms: %w", err)
	}
	c.log.Infow("fetched platforms", "count", len(platformElems))

	if err := sleep(ctx, interFetchDelay); err != nil {
		return model.AreaFeatures{}, err
	}

	c.log.Infow("fetching stop positions", "area", area.Name)
	stopPosElems, err := c.fetchElements(ctx, BuildStopPositionsQuery(area.BoundingBox, area.TransportTypes))
	if err != nil {
		return model.AreaFeatures{}, fmt.Errorf("fetching stop positions: %w", err)
	}
	c.log.Infow("fetched stop positions", "count", len(stopPosElems))

	if err := sleep(ctx, interFetchDelay); err != nil {
		return model.AreaFeatures{}, err
	}

	c.log.Infow("fetching routes", "area", area.Name)
	routesResp, err := c.fetchRaw(ctx, BuildRoutesQuery(area.BoundingBox, area.TransportTypes))
	if err != nil {
		return model.AreaFeatures{}, fmt.Errorf("fetching routes: %w", err)
	}
	routes := parseRoutesResponse(routesResp, area.ID)
	c.log.Infow("fetched routes", "count", len(routes))

	mappings := extractStationPlatformMappings(stationElems)
	stations := elementsToStations(stationElems, area.ID)

	stationOsmToID := make(map[int64]int64, len(stations))
	for _, s := range stations {
		stationOsmToID[s.OsmID] = s.OsmID
	}

	platforms := elementsToPlatforms(platformElems, mappings, stationOsmToID, area.ID)
	stopPositions := elementsToStopPositions(stopPosElems, area.ID)

	return model.AreaFeatures{
		Stations:      stations,
		Platforms:     platforms,
		StopPositions: stopPositions,
		Routes:        routes,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) fetchElements(ctx context.Context, query string) ([]element, error) {
	if query == "" {
		return nil, nil
	}
	resp, err := c.fetchRaw(ctx, query)
	if err != nil {
		return nil, err
	}
	return resp.Elements, nil
}

func (c *Client) fetchRaw(ctx context.Context, query string) (overpassResponse, error) {
	if query == "" {
		return overpassResponse{}, nil
	}

	body, err := c.executeWithRetry(ctx, query)
	if err != nil {
		return overpassResponse{}, err
	}

	var resp overpassResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		preview := body
		if len(preview) > 500 {
			preview = preview[:500]
		}
		c.log.Errorw("failed to parse overpass response", "error", err, "body_preview", string(preview))
		return overpassResponse{}, parseError("parsing overpass response", err)
	}

	return resp, nil
}

// executeWithRetry drives backoff.Retry with an exponential schedule
// seeded at 5s and capped at 3 attempts, classifying errors via
// OsmError.IsRetryable so non-transient failures fail immediately.
func (c *Client) executeWithRetry(ctx context.Context, query string) ([]byte, error) {
	var body []byte

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialRetryDelay
	policy := backoff.WithMaxRetries(bo, maxAttempts-1)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		b, err := c.executeRequest(ctx, query)
		if err == nil {
			body = b
			return nil
		}

		var osmErr *OsmError
		if asOsmError(err, &osmErr) && !osmErr.IsRetryable() {
			return backoff.Permanent(err)
		}

		c.log.Warnw("transient overpass error, will retry", "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		return nil, err
	}
	return body, nil
}

func asOsmError(err error, target **OsmError) bool {
	oe, ok := err.(*OsmError)
	if ok {
		*target = oe
	}
	return ok
}

func (c *Client) executeRequest(ctx context.Context, query string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBufferString(query))
	if err != nil {
		return nil, networkError("building overpass request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError("overpass request failed", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError("reading overpass response", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := text
		if len(preview) > 200 {
			preview = preview[:200]
		}
		c.log.Errorw("overpass api error", "status", resp.StatusCode, "body_preview", string(preview))

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, retryableError(fmt.Sprintf("HTTP %d", resp.StatusCode))
		}
		return nil, fatalHTTPError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(preview)))
	}

	return text, nil
}
