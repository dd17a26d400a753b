// Package regional reduces gridded fields to per-region time series and
// combines the regional index series into the composite index.
package regional

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// MaskMode selects how grid cells are assigned to a region.
type MaskMode string

const (
	// MaskCenter selects cells whose center lies inside or on the edge of
	// the region, each with weight 1.
	MaskCenter MaskMode = "center"
	// MaskArea weights every cell by the fraction of its area inside the
	// region.
	MaskArea MaskMode = "area"
)

// ParseMaskMode validates a mask mode name.
func ParseMaskMode(s string) (MaskMode, error) {
	switch m := MaskMode(s); m {
	case MaskCenter, MaskArea:
		return m, nil
	}
	return "", fmt.Errorf("%w: mask mode %q (want center or area)", domain.ErrMalformedInput, s)
}

// Mask is the set of cells of a grid that belong to a region, as indices
// into the grid's row-major cell order.
type Mask struct {
	RegionID string
	Cells    []int
	Weights  []float64
}

// Empty reports whether the mask selects no cells.
func (m Mask) Empty() bool { return len(m.Cells) == 0 }

// Masker builds region masks for a grid.
type Masker interface {
	Mask(region domain.Region, grid domain.Grid, mode MaskMode) (Mask, error)
}

// gridCell is one grid cell as a polygon in the R-tree.
type gridCell struct {
	geom.Polygon
	index  int
	center geom.Point
}

// GridMasker computes masks with an R-tree over the cell bounds.
type GridMasker struct{}

// Mask implements Masker.
func (GridMasker) Mask(region domain.Region, grid domain.Grid, mode MaskMode) (Mask, error) {
	if region.Geometry == nil {
		return Mask{}, fmt.Errorf("%w: region %s has no geometry", domain.ErrMalformedInput, region.ID)
	}
	if err := grid.Validate(); err != nil {
		return Mask{}, err
	}

	tree := rtree.NewTree(25, 50)
	for i := range grid.Lat {
		for j := range grid.Lon {
			minLat, maxLat, minLon, maxLon := grid.CellBounds(i, j)
			tree.Insert(gridCell{
				Polygon: geom.Polygon{{
					{X: minLon, Y: minLat},
					{X: maxLon, Y: minLat},
					{X: maxLon, Y: maxLat},
					{X: minLon, Y: maxLat},
				}},
				index:  grid.Index(i, j),
				center: geom.Point{X: grid.Lon[j], Y: grid.Lat[i]},
			})
		}
	}

	m := Mask{RegionID: region.ID}
	for _, s := range tree.SearchIntersect(region.Geometry.Bounds()) {
		c := s.(gridCell)
		w := cellWeight(c, region.Geometry, mode)
		if w > 0 {
			m.Cells = append(m.Cells, c.index)
			m.Weights = append(m.Weights, w)
		}
	}
	sortMask(&m)
	return m, nil
}

func cellWeight(c gridCell, region geom.Polygonal, mode MaskMode) float64 {
	area := c.Polygon.Area()
	if mode == MaskCenter || area == 0 {
		if c.center.Within(region) == geom.Outside {
			return 0
		}
		return 1
	}
	isect := c.Polygon.Intersection(region)
	if isect == nil {
		return 0
	}
	return math.Min(isect.Area()/area, 1)
}

// sortMask orders cells ascending so reductions are deterministic.
func sortMask(m *Mask) { sort.Sort(byCell(*m)) }

type byCell Mask

func (m byCell) Len() int           { return len(m.Cells) }
func (m byCell) Less(i, j int) bool { return m.Cells[i] < m.Cells[j] }
func (m byCell) Swap(i, j int) {
	m.Cells[i], m.Cells[j] = m.Cells[j], m.Cells[i]
	m.Weights[i], m.Weights[j] = m.Weights[j], m.Weights[i]
}
