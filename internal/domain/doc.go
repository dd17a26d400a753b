// Package domain models the gridded reanalysis fields, climatological
// baselines, regions and tide-gauge records handled by the climate index
// pipeline.
//
// # Data Sources
//
// Gridded fields come from the ERA5 hourly single-level reanalysis published
// by the Copernicus Climate Data Store (CDS). Requests are clipped to a
// bounding box around Colombia and downloaded as NetCDF. Sea-level records
// come from the Permanent Service for Mean Sea Level (PSMSL) monthly station
// files.
//
// # ERA5 Conventions
//
// Variables and native units:
//
//	t2m       2 m air temperature, kelvin
//	tp        total precipitation accumulated over the hour, metres
//	u10, v10  10 m wind components, m/s
//
// Coordinates:
//
//	latitude is stored north to south (decreasing); longitude west to east.
//	Both are in degrees on a regular 0.25° grid. Reading code accepts either
//	ordering as long as each axis is strictly monotonic.
//
// Time:
//
//	Older files carry "time" as int32 hours since 1900-01-01; files produced
//	by the current CDS carry "valid_time" as seconds since 1970-01-01. Both
//	are decoded through the CF "<unit> since <epoch>" attribute into UTC.
//
// Packing:
//
//	Values may be packed as int16 with scale_factor/add_offset and a
//	_FillValue. Unpacked values equal to the fill value become NaN.
//
// # Layout
//
// A [Field] stores values row-major as (time, latitude, longitude). A
// [Baseline] stores thresholds as (bin, quantile, latitude, longitude) and
// mean/std/count as (bin, latitude, longitude). Missing values are NaN
// everywhere; nothing in the pipeline uses sentinel numbers after decoding.
//
// # Calendar Bins
//
// Climatologies are grouped either by calendar month (12 bins) or by day of
// year (366 bins). Day-of-year bins are leap-aware: 29 February is bin 59
// (zero-based) and in non-leap years every day from 1 March onward is shifted
// by one so the same calendar day always lands in the same bin. See
// [Binning.Bin].
//
// # PSMSL Conventions
//
// Monthly rows are "decimal_year; height_mm; missing_days; flag". Heights of
// -99999 (and 9999 in some metric files) mark missing months. A flag other
// than "000" marks a value the data centre asks users to treat with caution.
package domain
