package osm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tramsync.dev/tramsync/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(zap.NewNop().Sugar()).WithBaseURL(server.URL)
}

func TestFetchRaw_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"elements":[{"type":"node","id":1,"lat":48.0,"lon":11.0}]}`))
	})

	resp, err := client.fetchRaw(context.Background(), "[out:json];node(1);out;")
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 1)
	assert.EqualValues(t, 3, calls, "2 failures + 1 success")
}

func TestFetchRaw_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.fetchRaw(context.Background(), "[out:json];node(1);out;")
	assert.Error(t, err)
	assert.EqualValues(t, maxAttempts, calls)
}

func TestFetchRaw_MalformedJSONIsParseErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`not json`))
	})

	_, err := client.fetchRaw(context.Background(), "[out:json];node(1);out;")
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls, "parse failures are not classified as retryable")
}

func TestFetchRaw_NotFoundFailsImmediatelyWithoutRetry(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.fetchRaw(context.Background(), "[out:json];node(1);out;")
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls, "HTTP 4xx other than 429 is fatal, not retryable")
}

func TestFetchRaw_EmptyQueryIsNoOp(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be made for an empty query")
	})

	resp, err := client.fetchRaw(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, resp.Elements)
}

func TestFetchAreaFeatures_AssemblesAllFourFeatureSets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query := string(body)

		switch {
		case strings.Contains(query, "stop_area"):
			w.Write([]byte(`{"elements":[{"type":"relation","id":1,"lat":48.0,"lon":11.0,"tags":{"name":"Central"}}]}`))
		case strings.Contains(query, "platform"):
			w.Write([]byte(`{"elements":[{"type":"node","id":2,"lat":48.0,"lon":11.0}]}`))
		case strings.Contains(query, "stop_position"):
			w.Write([]byte(`{"elements":[{"type":"node","id":3,"lat":48.0,"lon":11.0}]}`))
		default:
			w.Write([]byte(`{"elements":[]}`))
		}
	})

	area := model.Area{
		ID:             1,
		Name:           "test",
		BoundingBox:    model.BoundingBox{South: 48.3, West: 10.85, North: 48.45, East: 10.95},
		TransportTypes: []model.TransportType{model.TransportTram},
	}

	features, err := client.FetchAreaFeatures(context.Background(), area)
	require.NoError(t, err)
	assert.Len(t, features.Stations, 1)
	assert.Len(t, features.Platforms, 1)
	assert.Len(t, features.StopPositions, 1)
}
