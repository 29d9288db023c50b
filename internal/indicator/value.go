package indicator

import "strconv"

// Value is an indicator output that is either Defined(v) or Undefined.
// Indicators are undefined until enough bars have accumulated; the
// combiner maps undefined values to zero-confidence HOLD votes instead
// of consuming placeholder numbers.
type Value struct {
	val     float64
	defined bool
}

// Defined wraps a computed indicator value.
func Defined(v float64) Value {
	return Value{val: v, defined: true}
}

// Undefined is the "insufficient data" value.
func Undefined() Value {
	return Value{}
}

// Ok reports whether the value is defined.
func (v Value) Ok() bool { return v.defined }

// Float returns the underlying value; 0 when undefined. Callers must
// check Ok first.
func (v Value) Float() float64 { return v.val }

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.defined {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.val, 'f', -1, 64), nil
}

// UnmarshalJSON decodes null as Undefined.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*v = Value{val: f, defined: true}
	return nil
}
