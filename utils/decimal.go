package utils

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var errInvalidDecimal = errors.New("invalid decimal value")

// ParseMoney parses user or legacy formatted amounts:
// - "1234.56", "1,234.56"
// - "R$ 1.234,56", "1234,5"
// - "-R$ 20,00"
func ParseMoney(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Zero, errInvalidDecimal
	}
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "BRL", "")
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	s = normalizeSeparators(s)

	// Keep digits and '.' only.
	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, errInvalidDecimal
	}
	if neg {
		clean = "-" + clean
	}
	return decimal.NewFromString(clean)
}

// normalizeSeparators turns the decimal separator into '.' and drops thousands separators.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		// "1234,5" / "20,00" is a decimal comma; "20,000" / "1,000,000" are thousands.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	default:
		return s
	}
}

// ParseDecimalOrZero coerces anything a driver or caller may hand us into a decimal.
// NULL, garbage and non-finite floats become zero; it never fails.
func ParseDecimalOrZero(value any) decimal.Decimal {
	switch v := value.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case decimal.NullDecimal:
		if !v.Valid {
			return decimal.Zero
		}
		return v.Decimal
	case []byte:
		return stringOrZero(string(v))
	case string:
		return stringOrZero(v)
	case json.Number:
		return stringOrZero(v.String())
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	case float32:
		return floatOrZero(float64(v))
	case float64:
		return floatOrZero(v)
	default:
		return decimal.Zero
	}
}

func stringOrZero(s string) decimal.Decimal {
	d, err := ParseMoney(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func floatOrZero(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
