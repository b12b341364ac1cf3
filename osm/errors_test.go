package osm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOsmError_IsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  *OsmError
		want bool
	}{
		{"network", networkError("dial failed", errors.New("timeout")), true},
		{"retryable http status", retryableError("status 503"), true},
		{"parse", parseError("bad json", errors.New("unexpected token")), false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, c.err.IsRetryable(), c.name)
	}
}

func TestOsmError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := networkError("request failed", cause)
	assert.ErrorIs(t, err, cause)
}
