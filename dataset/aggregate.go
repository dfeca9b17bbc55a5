package dataset

import (
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Daily derives a dataset aggregated to calendar-day resolution. Variables
// with accumulation units (mm) are summed; everything else is averaged.
// Quality-control flag variables are dropped: a flag has no meaningful
// mean. Missing values are excluded from each bucket; a bucket with no
// valid samples yields the missing value.
func (d *Dataset) Daily() *Dataset {
	return d.aggregate("daily", func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	})
}

// Annual derives a dataset aggregated to calendar-year resolution, with
// the same per-variable rules as Daily.
func (d *Dataset) Annual() *Dataset {
	return d.aggregate("annual", func(t time.Time) time.Time {
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	})
}

// sumVariable reports whether a variable accumulates over time rather than
// averaging, judged by its units.
func sumVariable(v *Variable) bool {
	units := strings.ToLower(v.Attrs["units"])
	return units == "mm" || strings.HasPrefix(units, "mm/")
}

func (d *Dataset) aggregate(step string, bucket func(time.Time) time.Time) *Dataset {
	// Bucket boundaries in axis order; the time coordinate is strictly
	// monotonic so buckets come out chronological.
	var starts []time.Time
	var bounds []int // index of first sample in each bucket
	for i, t := range d.Time {
		b := bucket(t)
		if len(starts) == 0 || !b.Equal(starts[len(starts)-1]) {
			starts = append(starts, b)
			bounds = append(bounds, i)
		}
	}
	bounds = append(bounds, len(d.Time))

	attrs := copyAttrs(d.Attrs)
	attrs["time_step"] = step
	out := New(attrs)

	for _, name := range d.names {
		v := d.vars[name]
		switch {
		case name == "time":
			out.SetTime(starts, v.Attrs)
		case IsCoordinate(name):
			out.addVar(&Variable{Name: name, Data: v.Data, Attrs: v.Attrs})
		case strings.HasSuffix(name, QCFlagSuffix):
			// dropped
		case len(v.Data) == len(d.Time):
			data := make([]float64, len(starts))
			for i := range starts {
				data[i] = aggregateBucket(v.Data[bounds[i]:bounds[i+1]], sumVariable(v))
			}
			out.addVar(&Variable{Name: name, Data: data, Attrs: v.Attrs})
		default:
			out.addVar(&Variable{Name: name, Data: v.Data, Attrs: v.Attrs})
		}
	}
	return out
}

func aggregateBucket(samples []float64, sum bool) float64 {
	valid := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s == MissingValue || math.IsNaN(s) {
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return MissingValue
	}
	if sum {
		return floats.Sum(valid)
	}
	return stat.Mean(valid, nil)
}
