package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod marks a malformed or out-of-range month.
var ErrInvalidPeriod = errors.New("invalid period")

// CycleKind distinguishes 1x1 months from 360 months.
type CycleKind string

const (
	CycleOneToOne   CycleKind = "one-to-one"
	CycleThreeSixty CycleKind = "threesixty"
)

// CycleStatus is the lifecycle state of a cycle.
type CycleStatus string

const (
	CycleActive CycleStatus = "active"
	CycleClosed CycleStatus = "closed"
)

// RunLength is the number of monthly cycles created per generation run.
const RunLength = 3

// KindForSequence returns the cycle kind for a 1-based position in the
// overall monthly sequence: every third month is a 360 month.
func KindForSequence(seq int) CycleKind {
	if seq > 0 && seq%RunLength == 0 {
		return CycleThreeSixty
	}
	return CycleOneToOne
}

// Period is a calendar month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// NewPeriod validates and builds a Period.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	if year < 1 {
		return Period{}, fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	var y, m int
	if _, err := fmt.Sscanf(s, "%d-%d", &y, &m); err != nil {
		return Period{}, fmt.Errorf("%w: parse %q: %w", ErrInvalidPeriod, s, err)
	}
	return NewPeriod(y, m)
}

// Next returns the following month, rolling over the year.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// String renders the period as "YYYY-MM", which is also the cycle id.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Cycle is one calendar month of scheduled evaluations.
type Cycle struct {
	ID        string      `json:"id"`
	Year      int         `json:"year"`
	Month     time.Month  `json:"month"`
	Sequence  int         `json:"sequence"`
	Position  int         `json:"position"`
	Kind      CycleKind   `json:"kind"`
	Status    CycleStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Period returns the calendar month of the cycle.
func (c Cycle) Period() Period {
	return Period{Year: c.Year, Month: c.Month}
}

// CycleID returns the deterministic id of the cycle covering p.
func CycleID(p Period) string {
	return p.String()
}
