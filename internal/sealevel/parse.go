// Package sealevel parses PSMSL monthly tide-gauge records and derives
// monthly anomalies and long-term trends.
package sealevel

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Rejection reasons.
const (
	ReasonSentinel = "sentinel"
	ReasonFlag     = "flag"
	ReasonParse    = "parse"
	ReasonWindow   = "window"
)

// Missing-value sentinels used by PSMSL height columns.
const (
	sentinelMissing = -99999
	sentinelLegacy  = 9999
)

// ParseOptions controls which records are kept.
type ParseOptions struct {
	// KeepFlagged keeps records flagged for attention.
	KeepFlagged bool
	// Window drops records outside the period when set.
	Window domain.Period
}

// Parsed is the outcome of parsing one station file.
type Parsed struct {
	Records  []domain.SeaLevelRecord
	Rejected map[string]int
}

func (p *Parsed) reject(reason string) {
	if p.Rejected == nil {
		p.Rejected = make(map[string]int)
	}
	p.Rejected[reason]++
}

// Parse reads semicolon-separated rows "decimal_year; height_mm;
// missing_days; flag". Invalid rows are counted by reason and skipped.
func Parse(r io.Reader, stationID string, opts ParseOptions) (*Parsed, error) {
	out := &Parsed{Rejected: make(map[string]int)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 2 {
			out.reject(ReasonParse)
			continue
		}
		for k := range fields {
			fields[k] = strings.TrimSpace(fields[k])
		}
		dy, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			out.reject(ReasonParse)
			continue
		}
		h, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || math.IsNaN(h) {
			out.reject(ReasonParse)
			continue
		}
		if h == sentinelMissing || h == sentinelLegacy {
			out.reject(ReasonSentinel)
			continue
		}
		rec := domain.SeaLevelRecord{StationID: stationID, Time: DecimalYearToTime(dy), HeightMM: h}
		if len(fields) > 2 && fields[2] != "" {
			if rec.MissingDays, err = strconv.Atoi(fields[2]); err != nil {
				out.reject(ReasonParse)
				continue
			}
		}
		if len(fields) > 3 {
			rec.Flag = fields[3]
		}
		if flagged(rec.Flag) && !opts.KeepFlagged {
			out.reject(ReasonFlag)
			continue
		}
		if !opts.Window.IsZero() && !opts.Window.Contains(rec.Time) {
			out.reject(ReasonWindow)
			continue
		}
		out.Records = append(out.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read station %s: %w", stationID, err)
	}
	return out, nil
}

// ParseFile parses a cached station file.
func ParseFile(path, stationID string, opts ParseOptions) (*Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, stationID, opts)
}

func flagged(flag string) bool {
	return strings.Trim(flag, "0") != ""
}

// DecimalYearToTime maps year + fraction to a timestamp, scaling the
// fraction by the length of that year.
func DecimalYearToTime(dy float64) time.Time {
	year := int(math.Floor(dy))
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	days := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).Sub(start).Hours() / 24
	secs := math.Round((dy - float64(year)) * days * 86400)
	return start.Add(time.Duration(secs) * time.Second)
}

// TimeToDecimalYear is the inverse of DecimalYearToTime.
func TimeToDecimalYear(t time.Time) float64 {
	t = t.UTC()
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
	return float64(t.Year()) + t.Sub(start).Seconds()/end.Sub(start).Seconds()
}
