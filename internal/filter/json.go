package filter

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire form of a predicate node. Type tags follow the
// variant names; nested predicates recurse through the same envelope.
type envelope struct {
	Type   string          `json:"type"`
	Field  string          `json:"field,omitempty"`
	Value  interface{}     `json:"value,omitempty"`
	Values []interface{}   `json:"values,omitempty"`
	Left   json.RawMessage `json:"left,omitempty"`
	Right  json.RawMessage `json:"right,omitempty"`
	Inner  json.RawMessage `json:"inner,omitempty"`
}

// EncodeJSON serializes a predicate tree to its tagged JSON form, used
// when a plan is handed to the host engine's task distribution.
func EncodeJSON(p Predicate) ([]byte, error) {
	env, err := toEnvelope(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeJSON parses a predicate tree from its tagged JSON form.
func DecodeJSON(data []byte) (Predicate, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("filter: malformed predicate document: %w", err)
	}
	return fromEnvelope(&env)
}

func toEnvelope(p Predicate) (*envelope, error) {
	switch pred := p.(type) {
	case And:
		return binaryEnvelope("and", pred.Left, pred.Right)
	case Or:
		return binaryEnvelope("or", pred.Left, pred.Right)
	case Not:
		inner, err := EncodeJSON(pred.Inner)
		if err != nil {
			return nil, err
		}
		return &envelope{Type: "not", Inner: inner}, nil
	case Equal:
		return &envelope{Type: "equal", Field: pred.Field, Value: pred.Value}, nil
	case NullSafeEqual:
		return &envelope{Type: "nullSafeEqual", Field: pred.Field, Value: pred.Value}, nil
	case LessThan:
		return &envelope{Type: "lessThan", Field: pred.Field, Value: pred.Value}, nil
	case LessOrEqual:
		return &envelope{Type: "lessOrEqual", Field: pred.Field, Value: pred.Value}, nil
	case GreaterThan:
		return &envelope{Type: "greaterThan", Field: pred.Field, Value: pred.Value}, nil
	case GreaterOrEqual:
		return &envelope{Type: "greaterOrEqual", Field: pred.Field, Value: pred.Value}, nil
	case In:
		return &envelope{Type: "in", Field: pred.Field, Values: pred.Values}, nil
	case IsNull:
		return &envelope{Type: "isNull", Field: pred.Field}, nil
	case IsNotNull:
		return &envelope{Type: "isNotNull", Field: pred.Field}, nil
	case StringContains:
		return &envelope{Type: "stringContains", Field: pred.Field, Value: pred.Value}, nil
	case StringStartsWith:
		return &envelope{Type: "stringStartsWith", Field: pred.Field, Value: pred.Value}, nil
	case StringEndsWith:
		return &envelope{Type: "stringEndsWith", Field: pred.Field, Value: pred.Value}, nil
	default:
		return nil, fmt.Errorf("filter: cannot serialize predicate %T", p)
	}
}

func binaryEnvelope(tag string, left, right Predicate) (*envelope, error) {
	l, err := EncodeJSON(left)
	if err != nil {
		return nil, err
	}
	r, err := EncodeJSON(right)
	if err != nil {
		return nil, err
	}
	return &envelope{Type: tag, Left: l, Right: r}, nil
}

func fromEnvelope(env *envelope) (Predicate, error) {
	switch env.Type {
	case "and":
		left, right, err := decodeChildren(env)
		if err != nil {
			return nil, err
		}
		return And{Left: left, Right: right}, nil
	case "or":
		left, right, err := decodeChildren(env)
		if err != nil {
			return nil, err
		}
		return Or{Left: left, Right: right}, nil
	case "not":
		inner, err := DecodeJSON(env.Inner)
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	case "equal":
		return Equal{Field: env.Field, Value: env.Value}, nil
	case "nullSafeEqual":
		return NullSafeEqual{Field: env.Field, Value: env.Value}, nil
	case "lessThan":
		return LessThan{Field: env.Field, Value: env.Value}, nil
	case "lessOrEqual":
		return LessOrEqual{Field: env.Field, Value: env.Value}, nil
	case "greaterThan":
		return GreaterThan{Field: env.Field, Value: env.Value}, nil
	case "greaterOrEqual":
		return GreaterOrEqual{Field: env.Field, Value: env.Value}, nil
	case "in":
		return In{Field: env.Field, Values: env.Values}, nil
	case "isNull":
		return IsNull{Field: env.Field}, nil
	case "isNotNull":
		return IsNotNull{Field: env.Field}, nil
	case "stringContains":
		return StringContains{Field: env.Field, Value: stringValue(env.Value)}, nil
	case "stringStartsWith":
		return StringStartsWith{Field: env.Field, Value: stringValue(env.Value)}, nil
	case "stringEndsWith":
		return StringEndsWith{Field: env.Field, Value: stringValue(env.Value)}, nil
	default:
		return nil, fmt.Errorf("filter: unknown predicate type %q", env.Type)
	}
}

func decodeChildren(env *envelope) (Predicate, Predicate, error) {
	left, err := DecodeJSON(env.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err := DecodeJSON(env.Right)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
