package dataset

import (
	"fmt"
	"strings"
	"time"
)

// cfUnitSeconds maps CF time units to their length in seconds.
var cfUnitSeconds = map[string]float64{
	"seconds": 1,
	"second":  1,
	"secs":    1,
	"minutes": 60,
	"minute":  60,
	"mins":    60,
	"hours":   3600,
	"hour":    3600,
	"days":    86400,
	"day":     86400,
}

var cfEpochLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// decodeCFTime converts a numeric time axis with a CF units attribute
// ("days since 1800-01-01 00:00:00.0") to timestamps. OzFlux time axes are
// naive local standard time, so the epoch is parsed without a zone.
func decodeCFTime(units string, values []float64) ([]time.Time, error) {
	fields := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(fields) != 2 {
		return nil, fmt.Errorf("time units %q: missing \"since\"", units)
	}

	scale, ok := cfUnitSeconds[strings.ToLower(strings.TrimSpace(fields[0]))]
	if !ok {
		return nil, fmt.Errorf("time units %q: unsupported unit %q", units, fields[0])
	}

	epochStr := strings.TrimSpace(fields[1])
	var epoch time.Time
	var err error
	for _, layout := range cfEpochLayouts {
		epoch, err = time.Parse(layout, epochStr)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("time units %q: unparseable epoch %q", units, epochStr)
	}

	out := make([]time.Time, len(values))
	for i, v := range values {
		secs := v * scale
		out[i] = epoch.Add(time.Duration(secs * float64(time.Second))).Round(time.Second)
	}
	return out, nil
}
