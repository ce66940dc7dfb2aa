package entity

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/joseph-ayodele/contracts-analyzer/constants"
)

// ValueKind tags which member of Value is populated.
type ValueKind string

const (
	KindNumber   ValueKind = "number"
	KindInteger  ValueKind = "integer"
	KindText     ValueKind = "text"
	KindCategory ValueKind = "category"
	KindMissing  ValueKind = "missing"
	KindError    ValueKind = "error"
)

// Value is one typed cell of an ExtractedRecord.
// For Missing and Error, Str carries the sentinel reason.
type Value struct {
	Kind ValueKind
	Num  float64
	Int  int64
	Str  string
}

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }
func Text(s string) Value { return Value{Kind: KindText, Str: s} }
func Category(s string) Value { return Value{Kind: KindCategory, Str: s} }
func Missing(reason string) Value { return Value{Kind: KindMissing, Str: reason} }
func Error(reason string) Value { return Value{Kind: KindError, Str: reason} }

// NotFound is the sentinel for an answer that carried no usable value.
func NotFound() Value { return Missing(constants.SentinelNotFound) }

// ContextNotFound is the sentinel for a field whose retrieval came back empty.
func ContextNotFound() Value { return Missing(constants.SentinelContextNotFound) }

// IsNumeric reports whether v holds a Number or Integer.
func (v Value) IsNumeric() bool {
	return v.Kind == KindNumber || v.Kind == KindInteger
}

// IsSentinel reports whether v is Missing or Error.
func (v Value) IsSentinel() bool {
	return v.Kind == KindMissing || v.Kind == KindError || v.Kind == ""
}

// Float returns the numeric value of v, ok=false for non-numeric kinds.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindInteger:
		return float64(v.Int), true
	default:
		return 0, false
	}
}

// String renders v for display and categorical grouping.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindText, KindCategory, KindMissing, KindError:
		return v.Str
	default:
		return ""
	}
}

// Any returns v as a JSON-compatible Go value; sentinels become nil.
func (v Value) Any() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindInteger:
		return v.Int
	case KindText, KindCategory:
		return v.Str
	default:
		return nil
	}
}

type valueJSON struct {
	Kind  ValueKind `json:"kind"`
	Value any       `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.Kind}
	switch v.Kind {
	case KindNumber:
		out.Value = v.Num
	case KindInteger:
		out.Value = v.Int
	default:
		out.Value = v.Str
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw struct {
		Kind  ValueKind       `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = Value{Kind: raw.Kind}
	switch raw.Kind {
	case KindNumber:
		return json.Unmarshal(raw.Value, &v.Num)
	case KindInteger:
		return json.Unmarshal(raw.Value, &v.Int)
	case KindText, KindCategory, KindMissing, KindError:
		return json.Unmarshal(raw.Value, &v.Str)
	default:
		return fmt.Errorf("unknown value kind %q", raw.Kind)
	}
}
