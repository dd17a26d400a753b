// Package shapefile loads administrative boundaries from ESRI polygon
// shapefiles.
package shapefile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/jonas-p/go-shp"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Load reads every polygon record of path. Records sharing an ID are merged
// into one region; regions are returned sorted by ID. Coordinates must be
// longitude/latitude degrees.
func Load(path, idField, nameField string) ([]domain.Region, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile %s: %w", path, err)
	}
	defer r.Close()

	idIdx, err := fieldIndex(r.Fields(), idField)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	nameIdx := idIdx
	if nameField != "" {
		if nameIdx, err = fieldIndex(r.Fields(), nameField); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	byID := make(map[string]*domain.Region)
	for r.Next() {
		n, shape := r.Shape()
		rings := polygonRings(shape)
		if len(rings) == 0 {
			continue
		}
		id := attribute(r, n, idIdx)
		if id == "" {
			return nil, fmt.Errorf("%w: %s record %d has empty %s", domain.ErrMalformedInput, path, n, idField)
		}
		reg, ok := byID[id]
		if !ok {
			reg = &domain.Region{ID: id, Name: attribute(r, n, nameIdx), Geometry: geom.Polygon{}}
			byID[id] = reg
		}
		reg.Geometry = append(reg.Geometry.(geom.Polygon), rings...)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading shapefile %s: %w", path, err)
	}
	if len(byID) == 0 {
		return nil, fmt.Errorf("%w: %s has no polygon records", domain.ErrMalformedInput, path)
	}

	out := make([]domain.Region, 0, len(byID))
	for _, reg := range byID {
		out = append(out, *reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadDissolved reads every polygon of path into a single region.
func LoadDissolved(path, id, name string) (domain.Region, error) {
	r, err := shp.Open(path)
	if err != nil {
		return domain.Region{}, fmt.Errorf("opening shapefile %s: %w", path, err)
	}
	defer r.Close()

	var poly geom.Polygon
	for r.Next() {
		_, shape := r.Shape()
		poly = append(poly, polygonRings(shape)...)
	}
	if err := r.Err(); err != nil {
		return domain.Region{}, fmt.Errorf("reading shapefile %s: %w", path, err)
	}
	if len(poly) == 0 {
		return domain.Region{}, fmt.Errorf("%w: %s has no polygon records", domain.ErrMalformedInput, path)
	}
	return domain.Region{ID: id, Name: name, Geometry: poly}, nil
}

// attribute reads a DBF value. Unwritten bytes are NUL, not spaces.
func attribute(r *shp.Reader, row, field int) string {
	return strings.Trim(r.ReadAttribute(row, field), " \x00")
}

func fieldIndex(fields []shp.Field, name string) (int, error) {
	var names []string
	for k, f := range fields {
		if strings.EqualFold(f.String(), name) {
			return k, nil
		}
		names = append(names, f.String())
	}
	return 0, fmt.Errorf("%w: field %q not found (have %v)", domain.ErrMalformedInput, name, names)
}

// polygonRings splits a shapefile polygon into closed rings. Non-polygon
// shapes yield nothing.
func polygonRings(s shp.Shape) []geom.Path {
	p, ok := s.(*shp.Polygon)
	if !ok || len(p.Points) == 0 {
		return nil
	}
	rings := make([]geom.Path, 0, len(p.Parts))
	for k := range p.Parts {
		start := int(p.Parts[k])
		end := len(p.Points)
		if k+1 < len(p.Parts) {
			end = int(p.Parts[k+1])
		}
		if end-start < 3 {
			continue
		}
		ring := make(geom.Path, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, geom.Point{X: pt.X, Y: pt.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

// Write stores regions as a polygon shapefile with ID and NAME fields.
func Write(path string, regions []domain.Region) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("creating shapefile %s: %w", path, err)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{shp.StringField("ID", 32), shp.StringField("NAME", 80)}); err != nil {
		return fmt.Errorf("setting fields: %w", err)
	}
	for _, reg := range regions {
		var parts [][]shp.Point
		for _, poly := range reg.Geometry.Polygons() {
			for _, ring := range poly {
				pts := make([]shp.Point, len(ring))
				for k, pt := range ring {
					pts[k] = shp.Point{X: pt.X, Y: pt.Y}
				}
				parts = append(parts, pts)
			}
		}
		row := int(w.Write((*shp.Polygon)(shp.NewPolyLine(parts))))
		if err := w.WriteAttribute(row, 0, reg.ID); err != nil {
			return fmt.Errorf("writing %s: %w", reg.ID, err)
		}
		if err := w.WriteAttribute(row, 1, reg.Name); err != nil {
			return fmt.Errorf("writing %s: %w", reg.ID, err)
		}
	}
	return nil
}
