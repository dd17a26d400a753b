package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Period is an inclusive range of calendar days in UTC.
type Period struct {
	Start time.Time
	End   time.Time
}

// ParsePeriod parses "YYYY-MM-DD:YYYY-MM-DD" or "YYYY:YYYY".
func ParsePeriod(s string) (Period, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Period{}, fmt.Errorf("%w: period %q: want START:END", ErrMalformedInput, s)
	}
	start, err := parseBound(from, false)
	if err != nil {
		return Period{}, fmt.Errorf("period %q: %w", s, err)
	}
	end, err := parseBound(to, true)
	if err != nil {
		return Period{}, fmt.Errorf("period %q: %w", s, err)
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: period %q ends before it starts", ErrMalformedInput, s)
	}
	return Period{Start: start, End: end}, nil
}

// MustPeriod is ParsePeriod for constants and tests.
func MustPeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseBound(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 {
		t, err := time.Parse("2006", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: year %q", ErrMalformedInput, s)
		}
		if end {
			return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), nil
		}
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedInput, s)
	}
	return t, nil
}

// Contains reports whether t falls on a day within the period.
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start) && t.Before(p.End.AddDate(0, 0, 1))
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !p.End.Before(o.Start) && !o.End.Before(p.Start)
}

// Years returns every calendar year touched by the period.
func (p Period) Years() []int {
	var years []int
	for y := p.Start.Year(); y <= p.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

func (p Period) String() string {
	return p.Start.Format(dateLayout) + ":" + p.End.Format(dateLayout)
}

// Binning groups time steps into calendar bins.
type Binning string

const (
	BinMonth     Binning = "month"
	BinDayOfYear Binning = "dayofyear"
)

// ParseBinning validates a binning name.
func ParseBinning(s string) (Binning, error) {
	switch b := Binning(strings.ToLower(s)); b {
	case BinMonth, BinDayOfYear:
		return b, nil
	}
	return "", fmt.Errorf("%w: binning %q", ErrMalformedInput, s)
}

// Bins returns the number of bins.
func (b Binning) Bins() int {
	if b == BinDayOfYear {
		return 366
	}
	return 12
}

// Bin returns the zero-based bin of t.
func (b Binning) Bin(t time.Time) int {
	t = t.UTC()
	if b != BinDayOfYear {
		return int(t.Month()) - 1
	}
	doy := t.YearDay() - 1
	if !isLeap(t.Year()) && t.Month() > time.February {
		doy++
	}
	return doy
}

// ClimatologyYear is the leap year bins are dated in when a baseline is
// laid out as a series.
const ClimatologyYear = 2000

// BinTime returns the first day of bin in ClimatologyYear. Bin(BinTime(k))
// is k for every bin.
func (b Binning) BinTime(bin int) time.Time {
	if b != BinDayOfYear {
		return time.Date(ClimatologyYear, time.Month(bin+1), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(ClimatologyYear, time.January, 1+bin, 0, 0, 0, 0, time.UTC)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
