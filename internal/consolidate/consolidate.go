// Package consolidate merges the raw per-batch files of a variable into one
// time-ordered field per component.
package consolidate

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// part is one raw file's components.
type part struct {
	path   string
	fields []*domain.Field
}

func (p part) first() time.Time { return p.fields[0].Times[0] }
func (p part) last() time.Time  { return p.fields[0].Times[len(p.fields[0].Times)-1] }

// newPart rejects raw files without time steps or whose components
// disagree on the time axis.
func newPart(path string, fields []*domain.Field) (part, error) {
	if len(fields[0].Times) == 0 {
		return part{}, fmt.Errorf("%w: %s has no time steps", domain.ErrMalformedInput, path)
	}
	for _, f := range fields[1:] {
		if len(f.Times) != len(fields[0].Times) {
			return part{}, fmt.Errorf("%w: %s components have different time axes", domain.ErrMalformedInput, path)
		}
	}
	return part{path: path, fields: fields}, nil
}

// Files lists the raw NetCDF files of a variable.
func Files(layout storage.Layout, variable string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(layout.RawERA5Dir(variable), "*.nc"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Merge reads components from every path and concatenates them in time
// order, clipped to period when it is set. Input order does not matter.
// Every calendar month of period, or of the merged span when period is
// zero, must hold data.
func Merge(paths, components []string, period domain.Period, logger *slog.Logger) ([]*domain.Field, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no raw files", domain.ErrMissingPeriod)
	}
	parts := make([]part, 0, len(paths))
	for _, p := range paths {
		fields, err := ncio.ReadFields(p, components...)
		if err != nil {
			return nil, err
		}
		pt, err := newPart(p, fields)
		if err != nil {
			return nil, err
		}
		logger.Debug("read raw file", "path", p, "steps", len(fields[0].Times))
		parts = append(parts, pt)
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].first().Before(parts[j].first()) })

	grid := parts[0].fields[0].Grid
	for k, p := range parts {
		if err := grid.Mismatch(p.fields[0].Grid); err != nil {
			return nil, fmt.Errorf("%s vs %s: %w", parts[0].path, p.path, err)
		}
		if k > 0 && !p.first().After(parts[k-1].last()) {
			return nil, fmt.Errorf("%w: %s overlaps %s at %s", domain.ErrDuplicateTime,
				p.path, parts[k-1].path, p.first().Format(time.RFC3339))
		}
	}

	out := make([]*domain.Field, len(components))
	for c := range components {
		out[c] = concat(parts, c, period)
	}
	if len(out[0].Times) == 0 {
		return nil, fmt.Errorf("%w: no time steps inside %s", domain.ErrMissingPeriod, period)
	}
	if err := checkCoverage(out[0].Times, period); err != nil {
		return nil, err
	}
	return out, nil
}

func concat(parts []part, c int, period domain.Period) *domain.Field {
	src := parts[0].fields[c]
	cells := src.Grid.Cells()
	f := &domain.Field{Variable: src.Variable, Units: src.Units, Grid: src.Grid}
	for _, p := range parts {
		pf := p.fields[c]
		for t, ts := range pf.Times {
			if !period.IsZero() && !period.Contains(ts) {
				continue
			}
			f.Times = append(f.Times, ts)
			f.Data = append(f.Data, pf.Data[t*cells:(t+1)*cells]...)
		}
	}
	f.SetAttr("source", "ERA5 hourly single levels")
	if !period.IsZero() {
		f.SetAttr("period", period.String())
	}
	return f
}

// maxListed bounds the months named in a coverage error.
const maxListed = 12

// checkCoverage requires at least one time step in every calendar month of
// span, the finest grain raw batches are downloaded at. A zero span runs
// from the first to the last time step.
func checkCoverage(times []time.Time, span domain.Period) error {
	if span.IsZero() {
		span = domain.Period{Start: times[0], End: times[len(times)-1]}
	}
	seen := make(map[time.Time]bool)
	for _, t := range times {
		seen[monthStart(t)] = true
	}
	var missing []string
	for m := monthStart(span.Start); !m.After(span.End); m = m.AddDate(0, 1, 0) {
		if !seen[m] {
			missing = append(missing, m.Format("2006-01"))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	listed := missing
	if len(listed) > maxListed {
		listed = listed[:maxListed]
	}
	msg := strings.Join(listed, ", ")
	if extra := len(missing) - len(listed); extra > 0 {
		msg += fmt.Sprintf(" and %d more", extra)
	}
	return fmt.Errorf("%w: %d months have no data: %s", domain.ErrMissingPeriod, len(missing), msg)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Run merges the raw files of variable and writes the consolidated file. It
// returns the output path.
func Run(layout storage.Layout, variable string, components []string, period domain.Period, logger *slog.Logger) (string, error) {
	paths, err := Files(layout, variable)
	if err != nil {
		return "", err
	}
	logger.Info("consolidating", "variable", variable, "files", len(paths))

	fields, err := Merge(paths, components, period, logger)
	if err != nil {
		return "", fmt.Errorf("%s: %w", variable, err)
	}
	out := layout.ConsolidatedFile(variable)
	if err := ncio.WriteFields(out, fields...); err != nil {
		return "", err
	}
	logger.Info("consolidated", "variable", variable, "steps", len(fields[0].Times),
		"from", fields[0].Times[0].Format(time.RFC3339),
		"to", fields[0].Times[len(fields[0].Times)-1].Format(time.RFC3339))
	return out, nil
}
