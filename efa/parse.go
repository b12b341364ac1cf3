package efa

import (
	"time"

	"tramsync.dev/tramsync/model"
)

// ParseDepartures converts a raw monitor response into the normalized
// Departure list for one stop. Departures whose planned time is
// strictly in the past are dropped.
func ParseDepartures(ifopt string, resp *EfaDepartureMonitorResponse, now time.Time) []model.Departure {
	if resp == nil {
		return nil
	}

	var out []model.Departure
	for _, event := range resp.StopEvents {
		planned, ok := parseTime(event.DepartureTimePlanned)
		if !ok {
			continue
		}
		if planned.Before(now) {
			continue
		}

		d := model.Departure{
			StopIFOPT:        ifopt,
			LineNumber:       event.Transportation.Number,
			Destination:      event.Transportation.Destination.Name,
			PlannedDeparture: planned,
			Platform:         event.Location.DisassembledName,
		}

		if estimated, ok := parseTime(event.DepartureTimeEstimated); ok {
			d.EstimatedDeparture = &estimated
			delay := int(estimated.Sub(planned).Seconds()) / 60
			d.DelayMinutes = &delay
		}

		out = append(out, d)
	}

	return out
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
