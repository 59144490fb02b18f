package timebound

import (
	"encoding/json"
	"math"

	"github.com/tessera-io/tessera/internal/filter"
)

// BoundKind tags a bound as a lower or upper limit.
type BoundKind int

const (
	// Lower is an inclusive lower limit on the time column.
	Lower BoundKind = iota
	// Upper is an inclusive upper limit on the time column.
	Upper
)

// Bound is an inclusive limit on the partitioning time column, in epoch
// milliseconds.
type Bound struct {
	Kind   BoundKind
	Millis int64
}

// Extract decomposes a predicate into the inclusive bounds it implies
// for the time column. Conjunctions recurse into both children and
// concatenate. Disjunctions and negations yield no bounds at all: a
// bound taken from one side of an OR would unsoundly narrow the other
// side, so the caller must fall back to the residual filter instead.
// Predicates over other fields, predicates with non-integer values, and
// unsupported variants likewise yield nothing.
func Extract(p filter.Predicate, timeColumn string) []Bound {
	switch pred := p.(type) {
	case filter.And:
		return append(Extract(pred.Left, timeColumn), Extract(pred.Right, timeColumn)...)
	case filter.Or, filter.Not:
		return nil
	case filter.Equal:
		if v, ok := timeValue(pred.Field, pred.Value, timeColumn); ok {
			return []Bound{{Kind: Lower, Millis: v}, {Kind: Upper, Millis: v}}
		}
	case filter.LessThan:
		if v, ok := timeValue(pred.Field, pred.Value, timeColumn); ok {
			return []Bound{{Kind: Upper, Millis: v - 1}}
		}
	case filter.LessOrEqual:
		if v, ok := timeValue(pred.Field, pred.Value, timeColumn); ok {
			return []Bound{{Kind: Upper, Millis: v}}
		}
	case filter.GreaterThan:
		if v, ok := timeValue(pred.Field, pred.Value, timeColumn); ok {
			return []Bound{{Kind: Lower, Millis: v + 1}}
		}
	case filter.GreaterOrEqual:
		if v, ok := timeValue(pred.Field, pred.Value, timeColumn); ok {
			return []Bound{{Kind: Lower, Millis: v}}
		}
	}
	return nil
}

// ExtractAll concatenates the bounds of an implicitly conjunctive
// predicate list.
func ExtractAll(predicates []filter.Predicate, timeColumn string) []Bound {
	var bounds []Bound
	for _, p := range predicates {
		bounds = append(bounds, Extract(p, timeColumn)...)
	}
	return bounds
}

// Reduce collapses bounds to the tightest inclusive pair: the maximum
// of the lower bounds and the minimum of the upper bounds. An absent
// side reduces to the corresponding extreme of int64.
func Reduce(bounds []Bound) (lower, upper int64) {
	lower, upper = int64(math.MinInt64), int64(math.MaxInt64)
	for _, b := range bounds {
		switch b.Kind {
		case Lower:
			if b.Millis > lower {
				lower = b.Millis
			}
		case Upper:
			if b.Millis < upper {
				upper = b.Millis
			}
		}
	}
	return lower, upper
}

// timeValue returns the predicate value as epoch milliseconds when the
// predicate targets the time column and carries an integral value.
// Predicates arriving through the JSON wire form carry float64 (the
// encoding/json default) or json.Number; both count as integral when
// exact, so pruning works the same for decoded and in-process trees.
func timeValue(field string, value interface{}, timeColumn string) (int64, bool) {
	if field != timeColumn {
		return 0, false
	}
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		// Exact only below 2^53; beyond that a conversion could shift
		// the bound and narrow unsoundly.
		if v == math.Trunc(v) && v >= -(1<<53) && v <= 1<<53 {
			return int64(v), true
		}
		return 0, false
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
