package filter

// CanPushDown reports whether the segment scan layer can evaluate the
// predicate itself. This is a capability check on the variant, not a
// column check: field names play no part in the decision. Null-related
// variants are never pushed because the scan layer cannot represent
// three-valued null comparisons; they must be re-evaluated after the
// read. Unknown variants are conservatively rejected.
func CanPushDown(p Predicate) bool {
	switch p.(type) {
	case And, Or, Not,
		In,
		StringContains, StringStartsWith, StringEndsWith,
		Equal,
		LessThan, LessOrEqual, GreaterThan, GreaterOrEqual:
		return true
	case NullSafeEqual, IsNull, IsNotNull:
		return false
	default:
		return false
	}
}

// Classify partitions predicates into the set the segment scan
// evaluates (pushed) and the set the caller must re-apply after reading
// (residual). Every input predicate lands in exactly one of the two
// slices, in input order. Pure function; the inputs are not modified.
func Classify(predicates []Predicate) (pushed, residual []Predicate) {
	for _, p := range predicates {
		if CanPushDown(p) {
			pushed = append(pushed, p)
		} else {
			residual = append(residual, p)
		}
	}
	return pushed, residual
}

// Fields returns the set of field names referenced anywhere in the
// predicate tree.
func Fields(p Predicate) map[string]struct{} {
	fields := make(map[string]struct{})
	collectFields(p, fields)
	return fields
}

// References reports whether the predicate tree mentions the field.
func References(p Predicate, field string) bool {
	_, ok := Fields(p)[field]
	return ok
}

func collectFields(p Predicate, into map[string]struct{}) {
	switch pred := p.(type) {
	case And:
		collectFields(pred.Left, into)
		collectFields(pred.Right, into)
	case Or:
		collectFields(pred.Left, into)
		collectFields(pred.Right, into)
	case Not:
		collectFields(pred.Inner, into)
	case Equal:
		into[pred.Field] = struct{}{}
	case NullSafeEqual:
		into[pred.Field] = struct{}{}
	case LessThan:
		into[pred.Field] = struct{}{}
	case LessOrEqual:
		into[pred.Field] = struct{}{}
	case GreaterThan:
		into[pred.Field] = struct{}{}
	case GreaterOrEqual:
		into[pred.Field] = struct{}{}
	case In:
		into[pred.Field] = struct{}{}
	case IsNull:
		into[pred.Field] = struct{}{}
	case IsNotNull:
		into[pred.Field] = struct{}{}
	case StringContains:
		into[pred.Field] = struct{}{}
	case StringStartsWith:
		into[pred.Field] = struct{}{}
	case StringEndsWith:
		into[pred.Field] = struct{}{}
	}
}
