// Package ncio reads and writes the NetCDF files exchanged between stages.
//
// Reading accepts the layouts produced by the Climate Data Store (classic CDF
// and NetCDF-4/HDF5, "time" or "valid_time", packed int16 or float32) and
// returns fields with NaN for missing values. Writing always produces classic
// CDF with float64 data and a "hours since 1970-01-01" time axis.
package ncio
