// Package weather holds the value types shared by the store, the fetchers and
// the acquisition service.
package weather

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is the ISO-8601 minute-precision layout used for observation times,
// both on the wire and in the store.
const TimeLayout = "2006-01-02T15:04"

// Location identifies a place by its coordinates. Two locations are the same
// only when both coordinates are exactly equal.
type Location struct {
	Longitude float64
	Latitude  float64
}

// String formats the location as "lon,lat" with the shortest exact representation.
func (l Location) String() string {
	return strconv.FormatFloat(l.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(l.Latitude, 'f', -1, 64)
}

// Observation is one hourly record for a location.
type Observation struct {
	Location                 Location
	Time                     string
	PrecipitationProbability Reading
	Precipitation            Reading
	WindSpeed10m             Reading
}

// Reading is a measured value the provider may leave out. A missing reading is
// stored as NULL and rendered as JSON null, never as zero.
type Reading struct {
	Float64 float64
	Valid   bool
}

// Known returns a present reading.
func Known(v float64) Reading {
	return Reading{Float64: v, Valid: true}
}

// String formats the value, or "-" when missing.
func (r Reading) String() string {
	if !r.Valid {
		return "-"
	}
	return strconv.FormatFloat(r.Float64, 'g', -1, 64)
}

// MarshalJSON encodes a missing reading as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, r.Float64, 'g', -1, 64), nil
}

// Scan implements sql.Scanner.
func (r *Reading) Scan(src any) error {
	var n sql.NullFloat64
	if err := n.Scan(src); err != nil {
		return err
	}
	*r = Reading{Float64: n.Float64, Valid: n.Valid}
	return nil
}

// Value implements driver.Valuer.
func (r Reading) Value() (driver.Value, error) {
	if !r.Valid {
		return nil, nil
	}
	return r.Float64, nil
}

// Timestamp parses Time using TimeLayout.
func (o Observation) Timestamp() (time.Time, error) {
	ts, err := time.Parse(TimeLayout, o.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing observation time %q: %w", o.Time, err)
	}
	return ts, nil
}

// FormatTime renders t with TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
