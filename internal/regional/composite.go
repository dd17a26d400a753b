package regional

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// Component is one term of the composite index and the regional index
// series it averages.
type Component struct {
	Name    string
	Indices []string
}

// Components of the actuarial climate index, in output column order.
var Components = []Component{
	{Name: "t90", Indices: []string{"tx90", "tn90"}},
	{Name: "t10", Indices: []string{"tx10", "tn10"}},
	{Name: "wind", Indices: []string{"wp90"}},
	{Name: "rain", Indices: []string{"rx5day"}},
	{Name: "drought", Indices: []string{"cdd"}},
}

// IndexNames lists every regional index the composite reads.
func IndexNames() []string {
	var names []string
	for _, c := range Components {
		names = append(names, c.Indices...)
	}
	return names
}

// CompositeRow is the composite index of one month.
type CompositeRow struct {
	Time   time.Time
	Values []float64 // per Components
	Index  float64
}

// Composite computes (T90 - T10 + W + P + D) / 5 per month for regionID.
// series maps index names to regional summaries; a month where any term is
// missing or NaN gets a NaN index but keeps its known terms.
func Composite(series map[string][]domain.RegionalSummary, regionID string) ([]CompositeRow, error) {
	byIndex := make(map[string]map[time.Time]float64)
	months := make(map[time.Time]bool)
	for _, name := range IndexNames() {
		rows, ok := series[name]
		if !ok {
			return nil, fmt.Errorf("%w: composite needs the %s series", domain.ErrMalformedInput, name)
		}
		vals := make(map[time.Time]float64)
		for _, r := range rows {
			if r.RegionID != regionID {
				continue
			}
			m := monthOf(r.Time)
			vals[m] = r.Value
			months[m] = true
		}
		byIndex[name] = vals
	}
	if len(months) == 0 {
		return nil, fmt.Errorf("%w: no rows for region %s", domain.ErrMalformedInput, regionID)
	}

	times := make([]time.Time, 0, len(months))
	for m := range months {
		times = append(times, m)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := make([]CompositeRow, len(times))
	for k, m := range times {
		row := CompositeRow{Time: m, Values: make([]float64, len(Components))}
		for c, comp := range Components {
			sum := 0.0
			for _, name := range comp.Indices {
				v, ok := byIndex[name][m]
				if !ok {
					v = math.NaN()
				}
				sum += v
			}
			row.Values[c] = sum / float64(len(comp.Indices))
		}
		row.Index = (row.Values[0] - row.Values[1] + row.Values[2] + row.Values[3] + row.Values[4]) / 5
		out[k] = row
	}
	return out, nil
}

func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// WriteComposite writes composite rows as CSV.
func WriteComposite(path string, rows []CompositeRow) error {
	header := []string{"time"}
	for _, c := range Components {
		header = append(header, c.Name)
	}
	header = append(header, "ica")

	return storage.WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, r := range rows {
			rec := []string{r.Time.Format(time.DateOnly)}
			for _, v := range r.Values {
				rec = append(rec, formatFloat(v))
			}
			rec = append(rec, formatFloat(r.Index))
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadComposite reads a file written by WriteComposite.
func ReadComposite(path string) ([]CompositeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Components) + 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrMalformedInput, path)
	}
	out := make([]CompositeRow, 0, len(records)-1)
	for k, rec := range records[1:] {
		ts, err := time.Parse(time.DateOnly, rec[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrMalformedInput, path, k+2, err)
		}
		nums := make([]float64, len(rec)-1)
		for c, s := range rec[1:] {
			if nums[c], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrMalformedInput, path, k+2, err)
			}
		}
		out = append(out, CompositeRow{Time: ts, Values: nums[:len(Components)], Index: nums[len(Components)]})
	}
	return out, nil
}
