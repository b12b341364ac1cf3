package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox_OverpassString(t *testing.T) {
	b := BoundingBox{South: 48.3, West: 10.85, North: 48.45, East: 10.95}
	assert.Equal(t, "48.3,10.85,48.45,10.95", b.OverpassString())
}
