// Package timebound decomposes predicates over the partitioning time
// column into a catalog query interval. Reasoning is deliberately
// conservative: when a predicate cannot be reduced soundly, the
// interval widens rather than risking a dropped row.
package timebound

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Timestamp serialization used by the catalog. Fixed-width ISO-8601
// with milliseconds so string comparison matches time ordering.
const millisFormat = "2006-01-02T15:04:05.000Z"

const dayMillis = 24 * 60 * 60 * 1000

// Catalog interval defaults when a side is unbounded.
var (
	// DefaultStart is 1970-01-01T00:00:00.000Z.
	DefaultStart = int64(0)
	// DefaultEnd is 2100-01-01T00:00:00.000Z.
	DefaultEnd = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
)

// Interval is a half-open time range [Start, End) in epoch
// milliseconds, the form the segment catalog is queried with.
type Interval struct {
	StartMillis int64
	EndMillis   int64
}

// Eternity returns the widest catalog interval.
func Eternity() Interval {
	return Interval{StartMillis: DefaultStart, EndMillis: DefaultEnd}
}

// Start returns the inclusive start instant.
func (iv Interval) Start() time.Time {
	return time.UnixMilli(iv.StartMillis).UTC()
}

// End returns the exclusive end instant.
func (iv Interval) End() time.Time {
	return time.UnixMilli(iv.EndMillis).UTC()
}

// StartString returns the inclusive start serialized for the catalog.
func (iv Interval) StartString() string {
	return iv.Start().Format(millisFormat)
}

// EndString returns the exclusive end serialized for the catalog.
func (iv Interval) EndString() string {
	return iv.End().Format(millisFormat)
}

// String renders the interval in start/end form.
func (iv Interval) String() string {
	return iv.StartString() + "/" + iv.EndString()
}

// IsEmpty reports whether the interval contains no instants.
func (iv Interval) IsEmpty() bool {
	return iv.EndMillis <= iv.StartMillis
}

// Contains reports whether other lies entirely within the interval.
func (iv Interval) Contains(other Interval) bool {
	return other.StartMillis >= iv.StartMillis && other.EndMillis <= iv.EndMillis
}

// Overlaps reports whether the two half-open intervals share any
// instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.StartMillis < other.EndMillis && other.StartMillis < iv.EndMillis
}

// ContainsInstant reports whether the instant falls inside [Start, End).
func (iv Interval) ContainsInstant(millis int64) bool {
	return millis >= iv.StartMillis && millis < iv.EndMillis
}

// MarshalJSON serializes the interval in its start/end string form,
// matching the catalog payload format.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(iv.String())
}

// UnmarshalJSON parses the start/end string form.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timebound: interval must be a string: %w", err)
	}
	parsed, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*iv = parsed
	return nil
}

// ParseInterval parses an interval from its start/end string form.
func ParseInterval(s string) (Interval, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("timebound: malformed interval %q", s)
	}
	start, err := parseInstant(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("timebound: malformed interval start %q: %w", parts[0], err)
	}
	end, err := parseInstant(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("timebound: malformed interval end %q: %w", parts[1], err)
	}
	return Interval{StartMillis: start, EndMillis: end}, nil
}

func parseInstant(s string) (int64, error) {
	t, err := time.Parse(millisFormat, s)
	if err != nil {
		// Tolerate instants serialized without fractional seconds.
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return 0, err
		}
	}
	return t.UnixMilli(), nil
}

// IntervalFromBounds converts the reduced inclusive bound pair
// [lower, upper] into the half-open catalog interval. An absent lower
// bound (math.MinInt64) widens to the catalog's epoch start and an
// absent upper bound (math.MaxInt64) widens to the distant-future
// default. A present upper bound is inclusive, so the interval end is
// rounded up to the end of its UTC day before being made exclusive.
func IntervalFromBounds(lower, upper int64) Interval {
	iv := Eternity()
	// A pre-epoch lower bound clamps up to the catalog's 1970 floor.
	// Sound only because the store never publishes segments before the
	// epoch; rows a pre-epoch bound could match do not exist.
	if lower != math.MinInt64 && lower > DefaultStart {
		iv.StartMillis = lower
	}
	if upper != math.MaxInt64 {
		end := dayBucketEnd(upper)
		if end < DefaultEnd {
			iv.EndMillis = end
		}
	}
	return iv
}

// dayBucketEnd returns the first instant of the UTC day after the one
// containing millis, so an inclusive upper bound keeps its whole day.
// Near the int64 ceiling the next day boundary is not representable;
// the bound is effectively unbounded, so saturate rather than overflow
// into a negative (empty) interval end.
func dayBucketEnd(millis int64) int64 {
	if millis < 0 {
		// Floor division for instants before the epoch.
		day := (millis - (dayMillis - 1)) / dayMillis
		return (day + 1) * dayMillis
	}
	day := millis / dayMillis
	if day >= math.MaxInt64/dayMillis {
		return math.MaxInt64
	}
	return (day + 1) * dayMillis
}
