package ncio

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

const timeUnits = "hours since 1970-01-01 00:00:00"

var (
	latNames  = []string{"latitude", "lat"}
	lonNames  = []string{"longitude", "lon"}
	timeNames = []string{"valid_time", "time"}
)

// ReadField reads one variable from a NetCDF file.
func ReadField(path, variable string) (*domain.Field, error) {
	fields, err := ReadFields(path, variable)
	if err != nil {
		return nil, err
	}
	return fields[0], nil
}

// ReadFields reads the named gridded variables, or every (time, lat, lon)
// variable in the file when none are named. Fields are returned sorted by
// variable name when discovered.
func ReadFields(path string, variables ...string) ([]*domain.Field, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	latName, lat, err := readAxis(nc, latNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lonName, lon, err := readAxis(nc, lonNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	timeName, times, err := readTimes(nc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	grid := domain.Grid{Lat: lat, Lon: lon}

	if len(variables) == 0 {
		variables = gridVariables(nc, timeName, latName, lonName)
		if len(variables) == 0 {
			return nil, fmt.Errorf("%w: %s has no gridded variables", domain.ErrMalformedInput, path)
		}
	}

	globals := globalAttrs(nc.Attributes())
	fields := make([]*domain.Field, 0, len(variables))
	for _, name := range variables {
		v, err := nc.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: variable %q: %v", domain.ErrMalformedInput, path, name, err)
		}
		data, shape, err := flatten(v.Values)
		if err != nil {
			return nil, fmt.Errorf("%s: variable %q: %w", path, name, err)
		}
		if err := checkShape(name, v.Dimensions, shape, timeName, latName, lonName, len(times), len(lat), len(lon)); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		unpack(data, v.Attributes)

		f := &domain.Field{
			Variable: name,
			Units:    attrString(v.Attributes, "units"),
			Grid:     grid,
			Times:    times,
			Data:     data,
		}
		for k, val := range globals {
			f.SetAttr(k, val)
		}
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func readAxis(nc api.Group, names []string) (string, []float64, error) {
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		data, _, err := flatten(v.Values)
		if err != nil {
			return "", nil, fmt.Errorf("axis %s: %w", name, err)
		}
		return name, data, nil
	}
	return "", nil, fmt.Errorf("%w: none of %v present", domain.ErrMalformedInput, names)
}

func readTimes(nc api.Group) (string, []time.Time, error) {
	for _, name := range timeNames {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		raw, _, err := flatten(v.Values)
		if err != nil {
			return "", nil, fmt.Errorf("axis %s: %w", name, err)
		}
		unit, epoch, err := ParseTimeUnits(attrString(v.Attributes, "units"))
		if err != nil {
			return "", nil, fmt.Errorf("axis %s: %w", name, err)
		}
		times := make([]time.Time, len(raw))
		for k, r := range raw {
			times[k] = epoch.Add(time.Duration(math.Round(r * float64(unit)))).UTC()
		}
		return name, times, nil
	}
	return "", nil, fmt.Errorf("%w: none of %v present", domain.ErrMalformedInput, timeNames)
}

// ParseTimeUnits parses a CF time unit such as "hours since 1900-01-01
// 00:00:00.0".
func ParseTimeUnits(s string) (time.Duration, time.Time, error) {
	unitStr, epochStr, ok := strings.Cut(strings.TrimSpace(s), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("%w: time units %q", domain.ErrMalformedInput, s)
	}
	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(unitStr)) {
	case "seconds", "second", "s":
		unit = time.Second
	case "minutes", "minute":
		unit = time.Minute
	case "hours", "hour", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("%w: time unit %q", domain.ErrMalformedInput, unitStr)
	}
	epochStr = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(epochStr), "UTC"))
	for _, layout := range []string{
		"2006-01-02 15:04:05.0",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, epochStr); err == nil {
			return unit, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("%w: time epoch %q", domain.ErrMalformedInput, epochStr)
}

func gridVariables(nc api.Group, timeName, latName, lonName string) []string {
	var names []string
	for _, name := range nc.ListVariables() {
		if name == timeName || name == latName || name == lonName {
			continue
		}
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		if hasDims(v.Dimensions, timeName, latName, lonName) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func hasDims(dims []string, want ...string) bool {
	found := 0
	for _, d := range dims {
		for _, w := range want {
			if d == w {
				found++
			}
		}
	}
	return found == len(want)
}

// checkShape accepts (time, lat, lon) plus any number of length-1 extra
// dimensions such as ERA5's "expver" or "number".
func checkShape(name string, dims []string, shape []int, timeName, latName, lonName string, nt, nlat, nlon int) error {
	if len(dims) != len(shape) {
		return fmt.Errorf("%w: %s has %d dimensions but %d-d values", domain.ErrMalformedInput, name, len(dims), len(shape))
	}
	var order []string
	for k, d := range dims {
		if d == timeName || d == latName || d == lonName {
			order = append(order, d)
			continue
		}
		if shape[k] != 1 {
			return fmt.Errorf("%w: %s has extra dimension %s of length %d", domain.ErrMalformedInput, name, d, shape[k])
		}
	}
	if len(order) != 3 || order[0] != timeName || order[1] != latName || order[2] != lonName {
		return fmt.Errorf("%w: %s dimensions %v, want (%s, %s, %s)", domain.ErrMalformedInput, name, dims, timeName, latName, lonName)
	}
	got := 1
	for _, s := range shape {
		got *= s
	}
	if got != nt*nlat*nlon {
		return fmt.Errorf("%w: %s has %d values, want %d", domain.ErrMalformedInput, name, got, nt*nlat*nlon)
	}
	return nil
}

func globalAttrs(am api.AttributeMap) map[string]string {
	out := make(map[string]string)
	if am == nil {
		return out
	}
	for _, k := range am.Keys() {
		raw, ok := am.Get(k)
		if !ok {
			continue
		}
		if v, ok := raw.(string); ok {
			out[k] = v
		}
	}
	return out
}

// WriteFields writes fields sharing one grid and time axis to path
// atomically.
func WriteFields(path string, fields ...*domain.Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to write to %s", domain.ErrMalformedInput, path)
	}
	ref := fields[0]
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if err := ref.Grid.Mismatch(f.Grid); err != nil {
			return fmt.Errorf("%s vs %s: %w", ref.Variable, f.Variable, err)
		}
		if len(f.Times) != len(ref.Times) {
			return fmt.Errorf("%w: %s and %s have different time axes", domain.ErrMalformedInput, ref.Variable, f.Variable)
		}
	}

	return storage.WriteAtomicFile(path, func(tmp string) error {
		cw, err := cdf.OpenWriter(tmp)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := writeFieldVars(cw, fields); err != nil {
			_ = cw.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := cw.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		return nil
	})
}

func writeFieldVars(cw *cdf.CDFWriter, fields []*domain.Field) error {
	ref := fields[0]
	hours := make([]float64, len(ref.Times))
	for k, t := range ref.Times {
		hours[k] = t.Sub(time.Unix(0, 0).UTC()).Hours()
	}
	if err := addVar(cw, "time", hours, []string{"time"}, "units", timeUnits, "calendar", "gregorian"); err != nil {
		return err
	}
	if err := addCoords(cw, ref.Grid); err != nil {
		return err
	}
	nt, nlat, nlon := len(ref.Times), len(ref.Grid.Lat), len(ref.Grid.Lon)
	for _, f := range fields {
		if err := addVar(cw, f.Variable, nest3(f.Data, nt, nlat, nlon), []string{"time", "latitude", "longitude"}, "units", f.Units); err != nil {
			return err
		}
	}

	keys := []string{"Conventions"}
	vals := map[string]interface{}{"Conventions": "CF-1.8"}
	for _, f := range fields {
		for k, v := range f.Attrs {
			if _, dup := vals[k]; !dup {
				keys = append(keys, k)
				vals[k] = v
			}
		}
	}
	sort.Strings(keys[1:])
	return addGlobals(cw, keys, vals)
}

func addCoords(cw *cdf.CDFWriter, g domain.Grid) error {
	if err := addVar(cw, "latitude", g.Lat, []string{"latitude"}, "units", "degrees_north"); err != nil {
		return err
	}
	return addVar(cw, "longitude", g.Lon, []string{"longitude"}, "units", "degrees_east")
}

// addVar adds a variable with string attributes given as key/value pairs.
func addVar(cw *cdf.CDFWriter, name string, values interface{}, dims []string, kv ...string) error {
	keys := make([]string, 0, len(kv)/2)
	vals := make(map[string]interface{}, len(kv)/2)
	for k := 0; k+1 < len(kv); k += 2 {
		if kv[k+1] == "" {
			continue
		}
		keys = append(keys, kv[k])
		vals[kv[k]] = kv[k+1]
	}
	if len(keys) == 0 {
		keys = append(keys, "long_name")
		vals["long_name"] = name
	}
	attrs, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return fmt.Errorf("attributes for %s: %w", name, err)
	}
	if err := cw.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: attrs}); err != nil {
		return fmt.Errorf("add variable %s: %w", name, err)
	}
	return nil
}

func addGlobals(cw *cdf.CDFWriter, keys []string, vals map[string]interface{}) error {
	attrs, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return fmt.Errorf("global attributes: %w", err)
	}
	if err := cw.AddGlobalAttrs(attrs); err != nil {
		return fmt.Errorf("add global attributes: %w", err)
	}
	return nil
}
