package osm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tramsync.dev/tramsync/model"
)

var testBBox = model.BoundingBox{South: 48.3, West: 10.85, North: 48.45, East: 10.95}

func TestBuildStationsQuery_IncludesStopAreaAndTimeout90(t *testing.T) {
	q := BuildStationsQuery(testBBox, []model.TransportType{model.TransportTram})
	assert.Contains(t, q, `stop_area`)
	assert.Contains(t, q, "timeout:90")
	assert.Contains(t, q, testBBox.OverpassString())
}

func TestBuildStationsQuery_UnsupportedTransportTypeYieldsEmpty(t *testing.T) {
	q := BuildStationsQuery(testBBox, []model.TransportType{model.TransportSubway})
	assert.Empty(t, q)
}

func TestBuildPlatformsQuery_TramVsBusTagging(t *testing.T) {
	tram := BuildPlatformsQuery(testBBox, []model.TransportType{model.TransportTram})
	assert.Contains(t, tram, `"tram"="yes"`)

	bus := BuildPlatformsQuery(testBBox, []model.TransportType{model.TransportBus})
	assert.Contains(t, bus, `"bus"="yes"`)
	assert.Contains(t, bus, `highway`)
}

func TestBuildRoutesQuery_Timeout180AndRecursiveExpansion(t *testing.T) {
	q := BuildRoutesQuery(testBBox, []model.TransportType{model.TransportTram})
	assert.Contains(t, q, "timeout:180")
	assert.Contains(t, q, ">;")
	assert.Contains(t, q, "out skel qt;")
	assert.Contains(t, q, `["route"="tram"]`)
}

func TestBuildStopPositionsQuery_TramAndBusTags(t *testing.T) {
	q := BuildStopPositionsQuery(testBBox, []model.TransportType{model.TransportTram, model.TransportBus})
	assert.Contains(t, q, `"tram"="yes"`)
	assert.Contains(t, q, `"bus"="yes"`)
}
