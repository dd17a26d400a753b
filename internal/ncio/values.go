package ncio

import (
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// flatten walks the nested slices returned by the NetCDF reader and returns
// the values as float64 in row-major order along with the shape.
func flatten(values interface{}) ([]float64, []int, error) {
	v := reflect.ValueOf(values)
	var shape []int
	for cur := v; cur.Kind() == reflect.Slice; {
		shape = append(shape, cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}
	if len(shape) == 0 {
		f, ok := toFloat(v)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unsupported value type %T", domain.ErrMalformedInput, values)
		}
		return []float64{f}, nil, nil
	}

	n := 1
	for _, s := range shape {
		n *= s
	}
	out := make([]float64, 0, n)
	var walk func(reflect.Value, int) error
	walk = func(cur reflect.Value, depth int) error {
		if depth == len(shape) {
			f, ok := toFloat(cur)
			if !ok {
				return fmt.Errorf("%w: unsupported element type %s", domain.ErrMalformedInput, cur.Type())
			}
			out = append(out, f)
			return nil
		}
		if cur.Kind() != reflect.Slice || cur.Len() != shape[depth] {
			return fmt.Errorf("%w: ragged array at depth %d", domain.ErrMalformedInput, depth)
		}
		for k := 0; k < cur.Len(); k++ {
			if err := walk(cur.Index(k), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(v.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return float64(v.Uint()), true
	}
	return 0, false
}

// attrFloat reads a numeric attribute, accepting scalars and one-element
// arrays.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	v := reflect.ValueOf(raw)
	if v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			return 0, false
		}
		v = v.Index(0)
	}
	return toFloat(v)
}

func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprint(raw)
}

// unpack applies CF packing attributes and maps fill values to NaN.
func unpack(data []float64, attrs api.AttributeMap) {
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	fill, hasFill := attrFloat(attrs, "_FillValue")
	missing, hasMissing := attrFloat(attrs, "missing_value")
	if !hasScale {
		scale = 1
	}
	for k, v := range data {
		if (hasFill && v == fill) || (hasMissing && v == missing) {
			data[k] = math.NaN()
			continue
		}
		if hasScale || hasOffset {
			data[k] = v*scale + offset
		}
	}
}

func nest3(flat []float64, a, b, c int) [][][]float64 {
	out := make([][][]float64, a)
	for i := range out {
		out[i] = make([][]float64, b)
		for j := range out[i] {
			off := (i*b + j) * c
			out[i][j] = flat[off : off+c]
		}
	}
	return out
}

func nest4(flat []float64, a, b, c, d int) [][][][]float64 {
	out := make([][][][]float64, a)
	for i := range out {
		out[i] = nest3(flat[i*b*c*d:(i+1)*b*c*d], b, c, d)
	}
	return out
}

func nest3Int(flat []int, a, b, c int) [][][]int32 {
	out := make([][][]int32, a)
	for i := range out {
		out[i] = make([][]int32, b)
		for j := range out[i] {
			row := make([]int32, c)
			for k := range row {
				row[k] = int32(flat[(i*b+j)*c+k])
			}
			out[i][j] = row
		}
	}
	return out
}
