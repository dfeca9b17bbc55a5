package dataset

import (
	"sort"
	"time"
)

// QCFlagSuffix joins a data variable to its quality-control companion
// ("AH" -> "AH_QCFlag").
const QCFlagSuffix = "_QCFlag"

// SubsetOptions control Subset. Nil time bounds mean unbounded on that
// side; a nil Variables slice passes every data variable through.
type SubsetOptions struct {
	Variables []string
	Start     *time.Time
	End       *time.Time
	// KeepQCFlags retains the paired _QCFlag variable for every selected
	// data variable. The zero value of SubsetOptions keeps them, matching
	// the server's convention of publishing flags alongside data.
	DropQCFlags bool
}

// Subset derives a new dataset restricted to the requested variables and
// time range. Coordinate variables are always retained. Both time bounds
// are inclusive; bounds entirely outside the dataset's range produce a
// zero-length time dimension, not an error. Unknown variable names produce
// an UnknownVariableError listing every offender.
func (d *Dataset) Subset(opts SubsetOptions) (*Dataset, error) {
	keep, err := d.selectNames(opts)
	if err != nil {
		return nil, err
	}

	lo, hi := d.timeSlice(opts.Start, opts.End)

	out := New(copyAttrs(d.Attrs))
	for _, name := range d.names {
		if !keep[name] {
			continue
		}
		v := d.vars[name]
		if name == "time" {
			out.SetTime(d.Time[lo:hi], v.Attrs)
			continue
		}
		data := v.Data
		if len(data) == len(d.Time) {
			data = data[lo:hi]
		}
		out.addVar(&Variable{Name: name, Data: data, Attrs: v.Attrs})
	}
	return out, nil
}

// selectNames resolves the requested variable set to the full set of names
// to retain, validating against the dataset's declared variables.
func (d *Dataset) selectNames(opts SubsetOptions) (map[string]bool, error) {
	keep := make(map[string]bool, len(d.names))
	for _, name := range d.names {
		if IsCoordinate(name) {
			keep[name] = true
		}
	}

	if opts.Variables == nil {
		for _, name := range d.names {
			keep[name] = true
		}
		return keep, nil
	}

	var unknown []string
	for _, name := range opts.Variables {
		if !d.Has(name) {
			unknown = append(unknown, name)
			continue
		}
		keep[name] = true
		if opts.DropQCFlags {
			continue
		}
		if flag := name + QCFlagSuffix; d.Has(flag) {
			keep[flag] = true
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownVariableError{Names: unknown}
	}
	return keep, nil
}

// timeSlice returns the half-open index range [lo, hi) of timestamps
// within the inclusive [start, end] bounds. Relies on the time coordinate
// being strictly monotonic ascending.
func (d *Dataset) timeSlice(start, end *time.Time) (lo, hi int) {
	lo, hi = 0, len(d.Time)
	if start != nil {
		lo = sort.Search(len(d.Time), func(i int) bool { return !d.Time[i].Before(*start) })
	}
	if end != nil {
		hi = sort.Search(len(d.Time), func(i int) bool { return d.Time[i].After(*end) })
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
