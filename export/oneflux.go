package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ternau/fluxdata/dataset"
)

// onefluxVar maps an OzFlux variable to its OneFlux column label, output
// units and precision. Adapted from the PyFluxPro nc2csv_oneflux control
// file. prec is the number of decimal places; -1 renders a rounded
// integer.
type onefluxVar struct {
	name   string
	output string
	units  string
	prec   int
}

var onefluxVars = []onefluxVar{
	{"CO2", "CO2", "umol/mol", 3},
	{"Fco2", "FC", "umol/m^2/s", 4},
	{"Fg", "G", "W/m^2", -1},
	{"Fh", "H", "W/m^2", -1},
	{"H2O", "H2O", "mmol/mol", 2},
	{"Fe", "LE", "W/m^2", -1},
	{"Fld", "LW_IN", "W/m^2", -1},
	{"Flu", "LW_OUT", "W/m^2", -1},
	{"Fn", "NETRAD", "W/m^2", -1},
	{"Precip", "P", "mm", 1},
	{"ps", "PA", "kPa", 1},
	{"RH", "RH", "percent", -1},
	{"Sws", "SWC_1", "m^3/m^3", 3},
	{"Fsd", "SW_IN", "W/m^2", -1},
	{"Fsu", "SW_OUT", "W/m^2", -1},
	{"Ta", "TA", "degC", 2},
	{"Ts", "TS_1", "degC", 2},
	{"ustar", "USTAR", "m/s", 2},
	{"VPD", "VPD", "hPa", 3},
	{"Wd", "WD", "degrees", -1},
	{"Ws", "WS", "m/s", 2},
}

const stampLayout = "200601021504"

var timeResolution = map[int]string{30: "halfhourly", 60: "hourly"}

// OneFluxCSV writes the dataset in OneFlux CSV convention: one file per
// calendar year named <fluxnet-id>_qcv_<year>.csv, samples on a complete
// year grid at the dataset's time step with -9999 filling gaps, and each
// variable's quality-control flag column directly after its data column.
// Only the immediate output directory is created; a missing parent is an
// ExportError.
func OneFluxCSV(outdir string, ds *dataset.Dataset) ([]string, error) {
	step := ds.TimeStep()
	mins := int(step / time.Minute)
	timeres, ok := timeResolution[mins]
	if !ok {
		return nil, &ExportError{Path: outdir,
			Err: fmt.Errorf("unsupported time step %q minutes", ds.Attrs["time_step"])}
	}

	start, end, ok := ds.TemporalRange()
	if !ok {
		return nil, &ExportError{Path: outdir, Err: fmt.Errorf("dataset has empty time dimension")}
	}

	if _, err := os.Stat(outdir); os.IsNotExist(err) {
		if err := os.Mkdir(outdir, 0o755); err != nil {
			return nil, &ExportError{Path: outdir, Err: err}
		}
	}

	// Samples are stamped at period end, so the period covering new year
	// midnight belongs to the closing year.
	startYear := start.Add(-step).Year()
	endYear := end.Add(-step).Year()

	var files []string
	for year := startYear; year <= endYear; year++ {
		path, err := writeOneFluxYear(outdir, ds, year, step, timeres)
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func writeOneFluxYear(outdir string, ds *dataset.Dataset, year int, step time.Duration, timeres string) (string, error) {
	vars := presentVars(ds)

	path := filepath.Join(outdir, fmt.Sprintf("%s_qcv_%d.csv", fluxnetID(ds), year))
	f, err := os.Create(path)
	if err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)

	loc := time.UTC
	gridStart := time.Date(year, 1, 1, 0, 0, 0, 0, loc).Add(step)
	gridEnd := time.Date(year+1, 1, 1, 0, 0, 0, 0, loc)

	preamble := [][]string{
		{"site", fluxnetID(ds)},
		{"year", strconv.Itoa(year)},
		{"lat", ds.Attrs["latitude"]},
		{"lon", ds.Attrs["longitude"]},
		{"timezone", utcOffsetHours(ds.Attrs["time_zone"])},
		{"htower", gridStart.Format(stampLayout), numericOnly(ds.Attrs["tower_height"])},
		{"timeres", timeres},
		{"sc_negl", "1"},
		{"notes", "Adapted from PyFluxPro"},
	}
	for _, rec := range preamble {
		if err := w.Write(rec); err != nil {
			return "", &ExportError{Path: path, Err: err}
		}
	}

	header := []string{"TIMESTAMP_START", "TIMESTAMP_END"}
	for _, ov := range vars {
		header = append(header, ov.output)
		if ds.Has(ov.name + dataset.QCFlagSuffix) {
			header = append(header, ov.output+"_QC")
		}
	}
	if err := w.Write(header); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}

	// Index dataset samples by timestamp for grid alignment. The grid is
	// built in the same naive clock as the time axis.
	index := make(map[int64]int, len(ds.Time))
	for i, t := range ds.Time {
		index[naiveKey(t)] = i
	}

	for cur := gridStart; !cur.After(gridEnd); cur = cur.Add(step) {
		row := []string{
			cur.Add(-step).Format(stampLayout),
			cur.Format(stampLayout),
		}
		i, sampled := index[naiveKey(cur)]
		for _, ov := range vars {
			v, _ := ds.Var(ov.name)
			val := dataset.MissingValue
			if sampled && i < len(v.Data) && !math.IsNaN(v.Data[i]) {
				val = v.Data[i]
				if ov.name == "VPD" {
					val /= 10.0 // kPa -> hPa
				}
			}
			row = append(row, formatValue(val, ov.prec))

			if flag, ok := ds.Var(ov.name + dataset.QCFlagSuffix); ok {
				fv := dataset.MissingValue
				if sampled && i < len(flag.Data) && !math.IsNaN(flag.Data[i]) {
					fv = flag.Data[i]
				}
				row = append(row, formatValue(fv, -1))
			}
		}
		if err := w.Write(row); err != nil {
			return "", &ExportError{Path: path, Err: err}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}
	return path, nil
}

func presentVars(ds *dataset.Dataset) []onefluxVar {
	var out []onefluxVar
	for _, ov := range onefluxVars {
		if ds.Has(ov.name) {
			out = append(out, ov)
		}
	}
	return out
}

// fluxnetID prefers the six-character FLUXNET identifier, falling back to
// the site name.
func fluxnetID(ds *dataset.Dataset) string {
	if id := ds.Attrs["fluxnet_id"]; len(id) == 6 {
		return id
	}
	return ds.Attrs["site_name"]
}

// naiveKey compares timestamps by their wall-clock reading, ignoring zone.
func naiveKey(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC).Unix()
}

// utcOffsetHours renders the UTC offset of an IANA zone name in hours.
func utcOffsetHours(zone string) string {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "0"
	}
	_, secs := time.Now().In(loc).Zone()
	return strconv.FormatFloat(float64(secs)/3600, 'g', -1, 64)
}

func numericOnly(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			out = append(out, r)
		}
	}
	return string(out)
}

func formatValue(v float64, prec int) string {
	if prec < 0 {
		return strconv.Itoa(int(math.Round(v)))
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
