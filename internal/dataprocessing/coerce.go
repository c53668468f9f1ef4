package dataprocessing

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Coerce converts a cell into a JSON-representable value: nil, int64, uint64,
// float64, string or []any. Missing and NaN become nil, infinities become the
// strings "Infinity" and "-Infinity". Coerce(Coerce(v)) == Coerce(v).
func Coerce(v any) any {
	switch x := v.(type) {
	case nil, missingValue:
		return nil
	case string:
		return x
	case int64:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		return coerceUnsigned(uint64(x))
	case uint64:
		return coerceUnsigned(x)
	case float64:
		return coerceFloat(x)
	case float32:
		return coerceFloat(float64(x))
	case bool:
		return formatBool(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Coerce(e)
		}
		return out
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Coerce(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Coerce(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func coerceUnsigned(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func coerceFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return nil
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

// CoerceRow coerces every cell of a row.
func CoerceRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = Coerce(v)
	}
	return out
}

// TextOf renders a cell as text the way classification rules compare it:
// Missing and NaN render as "nan", floats keep a fractional part, booleans
// are capitalized.
func TextOf(v any) string {
	switch x := v.(type) {
	case nil, missingValue:
		return "nan"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return FormatFloat(x)
	case float32:
		return FormatFloat(float64(x))
	case bool:
		return formatBool(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = TextOf(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

// FormatFloat renders f in shortest round-trip form. Integral values keep a
// trailing ".0"; exponent notation is used below 1e-4 and from 1e16 up.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		return s
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
