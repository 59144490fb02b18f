// Package filter defines the predicate tree handed down by the host
// query engine and the pushdown classification over it. Predicates are
// immutable values; planning never rewrites a tree in place.
package filter

import (
	"fmt"
	"strings"
)

// Predicate is a node in a boolean filter expression over named fields.
// The variant set is closed; consumers dispatch with a type switch.
type Predicate interface {
	isPredicate()
	String() string
}

// And is the conjunction of two predicates.
type And struct {
	Left  Predicate
	Right Predicate
}

// Or is the disjunction of two predicates.
type Or struct {
	Left  Predicate
	Right Predicate
}

// Not negates a predicate.
type Not struct {
	Inner Predicate
}

// Equal matches rows where the field equals the value. NULL never
// matches.
type Equal struct {
	Field string
	Value interface{}
}

// NullSafeEqual matches rows where the field equals the value, treating
// two NULLs as equal. The scan layer cannot represent this three-valued
// comparison, so it is never pushed down.
type NullSafeEqual struct {
	Field string
	Value interface{}
}

// LessThan matches rows where the field is strictly less than the value.
type LessThan struct {
	Field string
	Value interface{}
}

// LessOrEqual matches rows where the field is at most the value.
type LessOrEqual struct {
	Field string
	Value interface{}
}

// GreaterThan matches rows where the field is strictly greater than the
// value.
type GreaterThan struct {
	Field string
	Value interface{}
}

// GreaterOrEqual matches rows where the field is at least the value.
type GreaterOrEqual struct {
	Field string
	Value interface{}
}

// In matches rows where the field equals any of the values.
type In struct {
	Field  string
	Values []interface{}
}

// IsNull matches rows where the field is NULL.
type IsNull struct {
	Field string
}

// IsNotNull matches rows where the field is not NULL.
type IsNotNull struct {
	Field string
}

// StringContains matches rows where the string field contains the value
// as a substring.
type StringContains struct {
	Field string
	Value string
}

// StringStartsWith matches rows where the string field starts with the
// value.
type StringStartsWith struct {
	Field string
	Value string
}

// StringEndsWith matches rows where the string field ends with the
// value.
type StringEndsWith struct {
	Field string
	Value string
}

func (And) isPredicate()              {}
func (Or) isPredicate()               {}
func (Not) isPredicate()              {}
func (Equal) isPredicate()            {}
func (NullSafeEqual) isPredicate()    {}
func (LessThan) isPredicate()         {}
func (LessOrEqual) isPredicate()      {}
func (GreaterThan) isPredicate()      {}
func (GreaterOrEqual) isPredicate()   {}
func (In) isPredicate()               {}
func (IsNull) isPredicate()           {}
func (IsNotNull) isPredicate()        {}
func (StringContains) isPredicate()   {}
func (StringStartsWith) isPredicate() {}
func (StringEndsWith) isPredicate()   {}

// String returns a readable rendering of the conjunction.
func (p And) String() string {
	return fmt.Sprintf("(%s AND %s)", p.Left, p.Right)
}

// String returns a readable rendering of the disjunction.
func (p Or) String() string {
	return fmt.Sprintf("(%s OR %s)", p.Left, p.Right)
}

// String returns a readable rendering of the negation.
func (p Not) String() string {
	return fmt.Sprintf("NOT %s", p.Inner)
}

// String returns a readable rendering of the equality.
func (p Equal) String() string {
	return fmt.Sprintf("%s = %s", p.Field, renderValue(p.Value))
}

// String returns a readable rendering of the null-safe equality.
func (p NullSafeEqual) String() string {
	return fmt.Sprintf("%s <=> %s", p.Field, renderValue(p.Value))
}

// String returns a readable rendering of the comparison.
func (p LessThan) String() string {
	return fmt.Sprintf("%s < %s", p.Field, renderValue(p.Value))
}

// String returns a readable rendering of the comparison.
func (p LessOrEqual) String() string {
	return fmt.Sprintf("%s <= %s", p.Field, renderValue(p.Value))
}

// String returns a readable rendering of the comparison.
func (p GreaterThan) String() string {
	return fmt.Sprintf("%s > %s", p.Field, renderValue(p.Value))
}

// String returns a readable rendering of the comparison.
func (p GreaterOrEqual) String() string {
	return fmt.Sprintf("%s >= %s", p.Field, renderValue(p.Value))
}

// String returns a readable rendering of the membership test.
func (p In) String() string {
	values := make([]string, len(p.Values))
	for i, v := range p.Values {
		values[i] = renderValue(v)
	}
	return fmt.Sprintf("%s IN (%s)", p.Field, strings.Join(values, ", "))
}

// String returns a readable rendering of the null test.
func (p IsNull) String() string {
	return fmt.Sprintf("%s IS NULL", p.Field)
}

// String returns a readable rendering of the not-null test.
func (p IsNotNull) String() string {
	return fmt.Sprintf("%s IS NOT NULL", p.Field)
}

// String returns a readable rendering of the substring test.
func (p StringContains) String() string {
	return fmt.Sprintf("%s CONTAINS '%s'", p.Field, p.Value)
}

// String returns a readable rendering of the prefix test.
func (p StringStartsWith) String() string {
	return fmt.Sprintf("%s STARTS WITH '%s'", p.Field, p.Value)
}

// String returns a readable rendering of the suffix test.
func (p StringEndsWith) String() string {
	return fmt.Sprintf("%s ENDS WITH '%s'", p.Field, p.Value)
}

// renderValue formats a predicate value for display.
func renderValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(val, "'", "''"))
	case nil:
		return "NULL"
	default:
		return fmt.Sprintf("%v", val)
	}
}
