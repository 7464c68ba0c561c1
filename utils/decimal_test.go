package utils

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMoney_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"200", "200"},
		{"1000.00", "1000"},
		{"1,234.56", "1234.56"},
		{"20,000", "20000"},
		{"R$ 1.234,56", "1234.56"},
		{"1234,5", "1234.5"},
		{"-R$ 20,00", "-20"},
		{"  BRL 500  ", "500"},
	}
	for _, tc := range cases {
		d, err := ParseMoney(tc.in)
		if err != nil {
			t.Fatalf("ParseMoney(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseMoney(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseMoney_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "R$", "1.2.3"} {
		if _, err := ParseMoney(in); err == nil {
			t.Fatalf("ParseMoney(%q) expected error", in)
		}
	}
}

func TestParseDecimalOrZero(t *testing.T) {
	d := decimal.RequireFromString("12.34")
	cases := []struct {
		name     string
		in       any
		expected string
	}{
		{"nil", nil, "0"},
		{"decimal", d, "12.34"},
		{"decimal ptr", &d, "12.34"},
		{"nil decimal ptr", (*decimal.Decimal)(nil), "0"},
		{"null decimal", decimal.NullDecimal{}, "0"},
		{"valid null decimal", decimal.NewNullDecimal(d), "12.34"},
		{"mysql bytes", []byte("1000.00"), "1000"},
		{"garbage bytes", []byte("n/a"), "0"},
		{"string", "R$ 200,00", "200"},
		{"garbage string", "1.2.3", "0"},
		{"json number", json.Number("5.5"), "5.5"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"float", 0.25, "0.25"},
		{"nan", math.NaN(), "0"},
		{"inf", math.Inf(1), "0"},
		{"unsupported", struct{}{}, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseDecimalOrZero(tc.in)
			if got.String() != tc.expected {
				t.Fatalf("ParseDecimalOrZero(%v) expected %s, got %s", tc.in, tc.expected, got.String())
			}
		})
	}
}
