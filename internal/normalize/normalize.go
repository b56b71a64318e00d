// Package normalize converts raw warehouse values into JSON-safe records.
package normalize

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// Records normalizes every row. Nil input yields an empty, non-nil slice.
func Records(rows []map[string]any) []domain.Record {
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, Record(row))
	}
	return out
}

// Record normalizes a single row.
func Record(row map[string]any) domain.Record {
	rec := make(domain.Record, len(row))
	for k, v := range row {
		rec[k] = Value(v)
	}
	return rec
}

// Value converts decimals and integers to float64 and temporal values to ISO-8601 strings.
// Applying it to an already normalized value is a no-op.
func Value(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64, string, bool:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case *big.Rat:
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	case decimal.Decimal:
		return val.InexactFloat64()
	case decimal.NullDecimal:
		if !val.Valid {
			return nil
		}
		return val.Decimal.InexactFloat64()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(time.RFC3339Nano)
	case civil.Date:
		return val.String()
	case civil.DateTime:
		return val.String()
	case civil.Time:
		return val.String()
	case []byte:
		return string(val)
	case domain.Record:
		return Record(val)
	case map[string]any:
		return Record(val)
	case []domain.Record:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Record(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Value(item)
		}
		return out
	default:
		return val
	}
}

// Round returns a copy of rec with every float rounded to the given places.
func Round(rec domain.Record, places int32) domain.Record {
	out := make(domain.Record, len(rec))
	for k, v := range rec {
		if f, ok := v.(float64); ok {
			out[k] = decimal.NewFromFloat(f).Round(places).InexactFloat64()
			continue
		}
		out[k] = v
	}
	return out
}

// RoundAll rounds every record in rows.
func RoundAll(rows []domain.Record, places int32) []domain.Record {
	out := make([]domain.Record, len(rows))
	for i, rec := range rows {
		out[i] = Round(rec, places)
	}
	return out
}

// Omit returns rows without the named columns.
func Omit(rows []domain.Record, cols ...string) []domain.Record {
	out := make([]domain.Record, len(rows))
	for i, rec := range rows {
		cp := make(domain.Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		for _, c := range cols {
			delete(cp, c)
		}
		out[i] = cp
	}
	return out
}

// Float reads a numeric column, treating null and non-numeric values as 0.
func Float(rec domain.Record, key string) float64 {
	switch v := Value(rec[key]).(type) {
	case float64:
		return v
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return 0
		}
		return d.InexactFloat64()
	default:
		return 0
	}
}

// Decimal reads a numeric column as a decimal.
func Decimal(rec domain.Record, key string) decimal.Decimal {
	switch v := rec[key].(type) {
	case decimal.Decimal:
		return v
	case *big.Rat:
		if v == nil {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(v.FloatString(10))
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.NewFromFloat(Float(rec, key))
}

// String reads a column as text. Missing and null values yield "".
func String(rec domain.Record, key string) string {
	switch v := Value(rec[key]).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return decimal.NewFromFloat(v).String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
