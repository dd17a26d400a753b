package cds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Area is a bounding box in degrees.
type Area struct {
	North, West, South, East float64
}

// Colombia covers the mainland plus San Andrés and Providencia.
var Colombia = Area{North: 13.5, West: -82, South: -4.5, East: -66.5}

// Request asks for hourly single-level data for one year, or selected months
// of it.
type Request struct {
	Variables []string
	Year      int
	Months    []int // empty means all twelve
	Area      Area
}

func (r Request) inputs() map[string]interface{} {
	months := r.Months
	if len(months) == 0 {
		months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	monthStr := make([]string, len(months))
	for i, m := range months {
		monthStr[i] = fmt.Sprintf("%02d", m)
	}
	days := make([]string, 31)
	for i := range days {
		days[i] = fmt.Sprintf("%02d", i+1)
	}
	hours := make([]string, 24)
	for i := range hours {
		hours[i] = fmt.Sprintf("%02d:00", i)
	}
	return map[string]interface{}{
		"product_type":    []string{"reanalysis"},
		"variable":        r.Variables,
		"year":            []string{fmt.Sprintf("%04d", r.Year)},
		"month":           monthStr,
		"day":             days,
		"time":            hours,
		"data_format":     "netcdf",
		"download_format": "unarchived",
		"area":            []float64{r.Area.North, r.Area.West, r.Area.South, r.Area.East},
	}
}

// ParseArea parses "N,W,S,E". An empty string is Colombia.
func ParseArea(s string) (Area, error) {
	if strings.TrimSpace(s) == "" {
		return Colombia, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Area{}, fmt.Errorf("%w: area %q: want N,W,S,E", domain.ErrMalformedInput, s)
	}
	var v [4]float64
	for k, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Area{}, fmt.Errorf("%w: area %q: %v", domain.ErrMalformedInput, s, err)
		}
		v[k] = f
	}
	a := Area{North: v[0], West: v[1], South: v[2], East: v[3]}
	if a.North <= a.South || a.East <= a.West {
		return Area{}, fmt.Errorf("%w: area %q is empty", domain.ErrMalformedInput, s)
	}
	return a, nil
}
