package db

import (
	"fmt"
	"math"
	"math/big"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/nickyhof/DuckDesk/core"
)

// Normalize converts a value scanned from the engine into a core.Value.
func Normalize(v any) core.Value {
	switch x := v.(type) {
	case nil:
		return core.Null()
	case time.Time:
		return core.Timestamp(x)
	case string:
		return core.String(x)
	case bool:
		return core.Bool(x)
	case int:
		return core.Int(int64(x))
	case int8:
		return core.Int(int64(x))
	case int16:
		return core.Int(int64(x))
	case int32:
		return core.Int(int64(x))
	case int64:
		return core.Int(x)
	case uint:
		return unsigned(uint64(x))
	case uint8:
		return core.Int(int64(x))
	case uint16:
		return core.Int(int64(x))
	case uint32:
		return core.Int(int64(x))
	case uint64:
		return unsigned(x)
	case float32:
		return float(float64(x))
	case float64:
		return float(x)
	case *big.Int:
		if x == nil {
			return core.Null()
		}
		if x.IsInt64() {
			return core.Int(x.Int64())
		}
		return core.String(x.String())
	case duckdb.Decimal:
		return float(x.Float64())
	case []any:
		items := make([]core.Value, len(x))
		for i, item := range x {
			items[i] = Normalize(item)
		}
		return core.Array(items...)
	case map[string]any:
		out := make(map[string]core.Value, len(x))
		for k, item := range x {
			out[k] = Normalize(item)
		}
		return core.Raw(out)
	case duckdb.Map:
		out := make(map[string]core.Value, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return core.Raw(out)
	case fmt.Stringer:
		return core.String(x.String())
	default:
		return core.Raw(x)
	}
}

// float maps NaN and infinities to null since JSON cannot carry them.
func float(f float64) core.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return core.Null()
	}
	return core.Float(f)
}

func unsigned(u uint64) core.Value {
	if u > math.MaxInt64 {
		return core.String(fmt.Sprint(u))
	}
	return core.Int(int64(u))
}
