// Package dataset holds the in-memory model for OzFlux tower datasets:
// a strictly monotonic time axis, coordinate variables and an ordered set
// of data variables with CF-style attributes. Datasets are never mutated
// after loading; subsetting and aggregation derive new datasets.
package dataset

import (
	"strconv"
	"time"
)

// MissingValue is the fill value used throughout OzFlux datasets.
const MissingValue = -9999.0

// coordinate variable names, always retained by the subset engine.
var coordinateNames = map[string]bool{
	"time":         true,
	"latitude":     true,
	"longitude":    true,
	"crs":          true,
	"station_name": true,
}

// IsCoordinate reports whether name is one of the coordinate variables.
func IsCoordinate(name string) bool { return coordinateNames[name] }

// Variable is a single named array with its attributes. Data holds one
// value per time step for time-indexed variables; coordinate variables may
// carry a single value (latitude, longitude) or none (crs, station_name).
type Variable struct {
	Name  string
	Data  []float64
	Attrs map[string]string
}

// Dataset is a resolved (site, version, level) array collection.
type Dataset struct {
	Time  []time.Time       // decoded time coordinate, strictly monotonic
	Attrs map[string]string // global attributes

	names []string // declaration order, time first when present
	vars  map[string]*Variable
}

func New(attrs map[string]string) *Dataset {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return &Dataset{
		Attrs: attrs,
		vars:  make(map[string]*Variable),
	}
}

// SetTime installs the time coordinate. attrs are the time variable's own
// attributes (units etc).
func (d *Dataset) SetTime(values []time.Time, attrs map[string]string) {
	d.Time = values
	d.addVar(&Variable{Name: "time", Attrs: attrs})
}

// AddVariable appends a variable, preserving declaration order. Adding a
// name twice replaces the data but keeps the original position.
func (d *Dataset) AddVariable(name string, data []float64, attrs map[string]string) {
	d.addVar(&Variable{Name: name, Data: data, Attrs: attrs})
}

func (d *Dataset) addVar(v *Variable) {
	if v.Attrs == nil {
		v.Attrs = make(map[string]string)
	}
	if _, ok := d.vars[v.Name]; !ok {
		d.names = append(d.names, v.Name)
	}
	d.vars[v.Name] = v
}

// Var returns the named variable.
func (d *Dataset) Var(name string) (*Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// Has reports whether the dataset declares the named variable.
func (d *Dataset) Has(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// Variables lists every variable name, coordinates included, in
// declaration order.
func (d *Dataset) Variables() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// DataVariables lists the non-coordinate variable names in declaration
// order.
func (d *Dataset) DataVariables() []string {
	var out []string
	for _, name := range d.names {
		if !IsCoordinate(name) {
			out = append(out, name)
		}
	}
	return out
}

// Coordinates lists the coordinate variable names present.
func (d *Dataset) Coordinates() []string {
	var out []string
	for _, name := range d.names {
		if IsCoordinate(name) {
			out = append(out, name)
		}
	}
	return out
}

// Len is the length of the time dimension.
func (d *Dataset) Len() int { return len(d.Time) }

// TemporalRange returns the first and last timestamps of the time
// coordinate. ok is false for a zero-length time dimension.
func (d *Dataset) TemporalRange() (start, end time.Time, ok bool) {
	if len(d.Time) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.Time[0], d.Time[len(d.Time)-1], true
}

// Attributes returns the attribute mapping for the requested variables,
// or for every variable when names is nil. Unknown names yield an
// UnknownVariableError.
func (d *Dataset) Attributes(names []string) (map[string]map[string]string, error) {
	if names == nil {
		names = d.Variables()
	}
	var unknown []string
	out := make(map[string]map[string]string, len(names))
	for _, name := range names {
		v, ok := d.vars[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out[name] = v.Attrs
	}
	if len(unknown) > 0 {
		return nil, &UnknownVariableError{Names: unknown}
	}
	return out, nil
}

// StationName returns the station_name coordinate value, decoded from its
// attrs at load time, or "" when absent.
func (d *Dataset) StationName() string {
	if v, ok := d.vars["station_name"]; ok {
		return v.Attrs["value"]
	}
	return ""
}

// TimeStep returns the sampling interval declared by the time_step global
// attribute (minutes), or 0 when absent or non-numeric.
func (d *Dataset) TimeStep() time.Duration {
	mins, err := strconv.Atoi(d.Attrs["time_step"])
	if err != nil {
		return 0
	}
	return time.Duration(mins) * time.Minute
}
