package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
)

// DecodeFile reads a NetCDF flux dataset from disk into the in-memory
// model. Variables keep file declaration order. When missingAsNaN is set,
// the -9999 fill value is replaced with NaN in every data variable.
func DecodeFile(path string, missingAsNaN bool) (*Dataset, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open netcdf: %w", err)
	}
	defer nc.Close()

	globals, err := globalAttrs(nc)
	if err != nil {
		return nil, err
	}
	ds := New(globals)

	nvars, err := nc.NVars()
	if err != nil {
		return nil, fmt.Errorf("inquire variables: %w", err)
	}

	for i := 0; i < nvars; i++ {
		v := nc.VarN(i)
		name, err := v.Name()
		if err != nil {
			return nil, fmt.Errorf("variable %d name: %w", i, err)
		}
		attrs, err := varAttrs(v)
		if err != nil {
			return nil, fmt.Errorf("variable %s attributes: %w", name, err)
		}

		switch name {
		case "time":
			raw, err := readFloats(v)
			if err != nil {
				return nil, fmt.Errorf("read time: %w", err)
			}
			times, err := decodeCFTime(attrs["units"], raw)
			if err != nil {
				return nil, fmt.Errorf("decode time axis: %w", err)
			}
			// Slicing and aggregation rely on a strictly increasing axis.
			for j := 1; j < len(times); j++ {
				if !times[j].After(times[j-1]) {
					return nil, fmt.Errorf("time axis not strictly increasing at index %d (%v then %v)",
						j, times[j-1], times[j])
				}
			}
			ds.SetTime(times, attrs)
		case "crs":
			ds.AddVariable(name, nil, attrs)
		case "station_name":
			s, err := readString(v)
			if err != nil {
				return nil, fmt.Errorf("read station_name: %w", err)
			}
			attrs["value"] = s
			ds.AddVariable(name, nil, attrs)
		default:
			data, err := readFloats(v)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
			if missingAsNaN && !IsCoordinate(name) {
				for j, val := range data {
					if val == MissingValue {
						data[j] = math.NaN()
					}
				}
			}
			ds.AddVariable(name, data, attrs)
		}
	}

	if ds.Time == nil {
		return nil, fmt.Errorf("dataset has no time coordinate")
	}
	return ds, nil
}

// readFloats reads a variable of any numeric type as a flat float64 slice.
// Flux variables are shaped (time, 1, 1); flattening collapses the
// singleton spatial dimensions.
func readFloats(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("get dimensions: %w", err)
	}
	total := uint64(1)
	for _, dim := range dims {
		n, err := dim.Len()
		if err != nil {
			return nil, err
		}
		total *= n
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("get type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable type: %v", t)
	}
}

// readString reads a NC_CHAR variable as a trimmed string.
func readString(v netcdf.Var) (string, error) {
	dims, err := v.Dims()
	if err != nil {
		return "", err
	}
	total := uint64(1)
	for _, dim := range dims {
		n, err := dim.Len()
		if err != nil {
			return "", err
		}
		total *= n
	}
	buf := make([]byte, total)
	if err := v.ReadBytes(buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00 "), nil
}

func globalAttrs(nc netcdf.Dataset) (map[string]string, error) {
	n, err := nc.NAttrs()
	if err != nil {
		return nil, fmt.Errorf("inquire global attributes: %w", err)
	}
	attrs := make(map[string]string, n)
	for i := 0; i < n; i++ {
		a, err := nc.AttrN(i)
		if err != nil {
			return nil, fmt.Errorf("global attribute %d: %w", i, err)
		}
		val, err := attrString(a)
		if err != nil {
			return nil, fmt.Errorf("global attribute %s: %w", a.Name(), err)
		}
		attrs[a.Name()] = val
	}
	return attrs, nil
}

func varAttrs(v netcdf.Var) (map[string]string, error) {
	n, err := v.NAttrs()
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]string, n)
	for i := 0; i < n; i++ {
		a, err := v.AttrN(i)
		if err != nil {
			return nil, err
		}
		val, err := attrString(a)
		if err != nil {
			return nil, err
		}
		attrs[a.Name()] = val
	}
	return attrs, nil
}

// attrString renders an attribute value as text. Multi-element numeric
// attributes (valid_range) join with commas.
func attrString(a netcdf.Attr) (string, error) {
	t, err := a.Type()
	if err != nil {
		return "", err
	}
	n, err := a.Len()
	if err != nil {
		return "", err
	}

	switch t {
	case netcdf.CHAR, netcdf.BYTE:
		buf := make([]byte, n)
		if err := a.ReadBytes(buf); err != nil {
			return "", err
		}
		return strings.TrimRight(string(buf), "\x00"), nil
	case netcdf.DOUBLE:
		vals := make([]float64, n)
		if err := a.ReadFloat64s(vals); err != nil {
			return "", err
		}
		return joinFloats(vals), nil
	case netcdf.FLOAT:
		vals := make([]float32, n)
		if err := a.ReadFloat32s(vals); err != nil {
			return "", err
		}
		out := make([]float64, n)
		for i, val := range vals {
			out[i] = float64(val)
		}
		return joinFloats(out), nil
	case netcdf.INT:
		vals := make([]int32, n)
		if err := a.ReadInt32s(vals); err != nil {
			return "", err
		}
		parts := make([]string, n)
		for i, val := range vals {
			parts[i] = strconv.FormatInt(int64(val), 10)
		}
		return strings.Join(parts, ","), nil
	case netcdf.SHORT:
		vals := make([]int16, n)
		if err := a.ReadInt16s(vals); err != nil {
			return "", err
		}
		parts := make([]string, n)
		for i, val := range vals {
			parts[i] = strconv.FormatInt(int64(val), 10)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("unsupported attribute type: %v", t)
	}
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
