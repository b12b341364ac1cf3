package efa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDepartures_DropsPastPlannedTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := &EfaDepartureMonitorResponse{
		StopEvents: []EfaStopEvent{
			{DepartureTimePlanned: "2024-01-01T00:00:00Z"},
		},
	}

	got := ParseDepartures("de:1:1", resp, now)
	assert.Empty(t, got, "departure strictly before now should be dropped")
}

func TestParseDepartures_EqualPlannedAndEstimatedYieldsZeroDelay(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	planned := now.Add(10 * time.Minute)
	resp := &EfaDepartureMonitorResponse{
		StopEvents: []EfaStopEvent{
			{
				DepartureTimePlanned:   planned.Format(time.RFC3339),
				DepartureTimeEstimated: planned.Format(time.RFC3339),
			},
		},
	}

	got := ParseDepartures("de:1:1", resp, now)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].DelayMinutes)
	assert.Equal(t, 0, *got[0].DelayMinutes)
}

func TestParseDepartures_TruncatingDelay(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	planned := now.Add(10 * time.Minute)
	estimated := planned.Add(90 * time.Second) // 1.5 minutes late, truncates to 1

	resp := &EfaDepartureMonitorResponse{
		StopEvents: []EfaStopEvent{
			{
				DepartureTimePlanned:   planned.Format(time.RFC3339),
				DepartureTimeEstimated: estimated.Format(time.RFC3339),
			},
		},
	}

	got := ParseDepartures("de:1:1", resp, now)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].DelayMinutes)
	assert.Equal(t, 1, *got[0].DelayMinutes)
}

func TestParseDepartures_NilResponseYieldsNoDepartures(t *testing.T) {
	got := ParseDepartures("de:1:1", nil, time.Now())
	assert.Nil(t, got)
}
