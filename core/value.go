package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type ValueKind int

const (
	NullKind ValueKind = iota
	StringKind
	IntKind
	FloatKind
	BoolKind
	TimestampKind
	ArrayKind
	RawKind
)

func (k ValueKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case BoolKind:
		return "bool"
	case TimestampKind:
		return "timestamp"
	case ArrayKind:
		return "array"
	default:
		return "raw"
	}
}

// TimestampLayout is the ISO-8601 layout timestamps are rendered with.
const TimestampLayout = time.RFC3339Nano

// Value is a single normalized cell of a query result.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
	Items []Value
	Raw   any
}

func Null() Value { return Value{Kind: NullKind} }

func String(s string) Value { return Value{Kind: StringKind, Str: s} }

func Int(i int64) Value { return Value{Kind: IntKind, Int: i} }

func Float(f float64) Value { return Value{Kind: FloatKind, Float: f} }

func Bool(b bool) Value { return Value{Kind: BoolKind, Bool: b} }

func Timestamp(t time.Time) Value { return Value{Kind: TimestampKind, Time: t} }

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: ArrayKind, Items: items}
}

// Raw wraps a value that has no dedicated kind; it is encoded as-is.
func Raw(v any) Value { return Value{Kind: RawKind, Raw: v} }

func (v Value) IsNull() bool { return v.Kind == NullKind }

// Interface returns the plain Go form of the value.
func (v Value) Interface() any {
	switch v.Kind {
	case StringKind:
		return v.Str
	case IntKind:
		return v.Int
	case FloatKind:
		return v.Float
	case BoolKind:
		return v.Bool
	case TimestampKind:
		return v.Time.Format(TimestampLayout)
	case ArrayKind:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Interface()
		}
		return out
	case RawKind:
		return v.Raw
	default:
		return nil
	}
}

// String renders the value for terminal output.
func (v Value) String() string {
	switch v.Kind {
	case NullKind:
		return "NULL"
	case StringKind:
		return v.Str
	case IntKind:
		return strconv.FormatInt(v.Int, 10)
	case FloatKind:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case BoolKind:
		return strconv.FormatBool(v.Bool)
	case TimestampKind:
		return v.Time.Format(TimestampLayout)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v.Interface())
		}
		return string(data)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == ArrayKind {
		return json.Marshal(v.Items)
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes the JSON form back into a Value. Timestamps come back
// as strings since JSON carries no type for them.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromJSON(raw)
	return nil
}

func fromJSON(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i)
		}
		f, err := x.Float64()
		if err != nil {
			return String(x.String())
		}
		return Float(f)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = fromJSON(item)
		}
		return Array(items...)
	default:
		return Raw(x)
	}
}
