package storage

import (
	"fmt"
	"path/filepath"
)

// Product subdirectories under processed/<variable>/.
const (
	Consolidated = "consolidated"
	Percentile   = "percentile"
	Anomaly      = "anomaly"
	Regional     = "regional"
)

// Layout resolves every path the pipeline reads or writes under one data
// directory.
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at dir.
func NewLayout(dir string) Layout { return Layout{Root: dir} }

// RawERA5Dir is raw/era5/<variable>.
func (l Layout) RawERA5Dir(variable string) string {
	return filepath.Join(l.Root, "raw", "era5", variable)
}

// RawERA5 is the batch file for one year, or one month when month > 0.
func (l Layout) RawERA5(variable string, year, month int) string {
	name := fmt.Sprintf("era5_%s_%04d.nc", variable, year)
	if month > 0 {
		name = fmt.Sprintf("era5_%s_%04d%02d.nc", variable, year, month)
	}
	return filepath.Join(l.RawERA5Dir(variable), name)
}

// RawPSMSL is raw/psmsl/<station>.<ext>.
func (l Layout) RawPSMSL(station, ext string) string {
	return filepath.Join(l.Root, "raw", "psmsl", station+"."+ext)
}

// ProductDir is processed/<variable>/<product>.
func (l Layout) ProductDir(variable, product string) string {
	return filepath.Join(l.Root, "processed", variable, product)
}

// ConsolidatedFile is processed/<variable>/consolidated/<variable>.nc.
func (l Layout) ConsolidatedFile(variable string) string {
	return filepath.Join(l.ProductDir(variable, Consolidated), variable+".nc")
}

// PercentileFile is processed/<variable>/percentile/<series>.nc.
func (l Layout) PercentileFile(variable, series string) string {
	return filepath.Join(l.ProductDir(variable, Percentile), series+".nc")
}

// AnomalyFile is processed/<variable>/anomaly/<name>.nc.
func (l Layout) AnomalyFile(variable, name string) string {
	return filepath.Join(l.ProductDir(variable, Anomaly), name+".nc")
}

// RegionalFile is processed/<variable>/regional/<product>.csv.
func (l Layout) RegionalFile(variable, product string) string {
	return filepath.Join(l.ProductDir(variable, Regional), product+".csv")
}

// SeaLevelDir is processed/sealevel.
func (l Layout) SeaLevelDir() string {
	return filepath.Join(l.Root, "processed", "sealevel")
}

// CompositeFile is processed/composite/<region>.csv.
func (l Layout) CompositeFile(region string) string {
	return filepath.Join(l.Root, "processed", "composite", region+".csv")
}

// PlotFile is processed/plots/<name>.png.
func (l Layout) PlotFile(name string) string {
	return filepath.Join(l.Root, "processed", "plots", name+".png")
}

// CatalogFile is <data>/catalog.db.
func (l Layout) CatalogFile() string {
	return filepath.Join(l.Root, "catalog.db")
}
