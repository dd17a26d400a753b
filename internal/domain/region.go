package domain

import (
	"time"

	"github.com/ctessum/geom"
)

// Region is a named administrative polygon in longitude/latitude degrees.
type Region struct {
	ID       string
	Name     string
	Geometry geom.Polygonal
}

// RegionalSummary is one reduced value for a region and time step.
type RegionalSummary struct {
	RegionID   string
	RegionName string
	Time       time.Time
	Value      float64
	Cells      int
}

// SeaLevelRecord is one monthly tide-gauge observation.
type SeaLevelRecord struct {
	StationID   string
	Time        time.Time
	HeightMM    float64
	MissingDays int
	Flag        string
}

// Station identifies a PSMSL tide gauge and the product to download.
type Station struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Product string `yaml:"product"` // "met" or "rlr"
}
