package id

import (
	"math/big"
	"testing"

	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
)

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("10", 18)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	want, _ := new(big.Int).SetString("10000000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("unexpected base units: %s", got)
	}

	got, err = ParseAmount("1.25", 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if got.String() != "1250000" {
		t.Fatalf("unexpected base units: %s", got)
	}

	got, err = ParseAmount("1.50", 1)
	if err != nil {
		t.Fatalf("trailing zeros within precision should parse: %v", err)
	}
	if got.String() != "15" {
		t.Fatalf("unexpected base units: %s", got)
	}
}

func TestParseAmountRejectsInvalidInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "-1", "0", "0.0", "1e18", "1,5", "NaN"} {
		_, err := ParseDecimalAmount(raw)
		if err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
		if typed, ok := clierr.As(err); !ok || typed.Code != clierr.CodeUsage {
			t.Fatalf("expected usage error for %q, got %v", raw, err)
		}
	}
}

func TestParseAmountPrecision(t *testing.T) {
	if _, err := ParseAmount("1.1234567", 6); err == nil {
		t.Fatal("expected precision error")
	}
}

func TestFormatBaseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"0", 6, "0"},
		{"1000000", 6, "1"},
		{"1250000", 6, "1.25"},
		{"9900000000000000000", 18, "9.9"},
		{"1", 18, "0.000000000000000001"},
	}
	for _, tc := range cases {
		n, _ := new(big.Int).SetString(tc.in, 10)
		if got := FormatBaseUnits(n, tc.decimals); got != tc.want {
			t.Fatalf("FormatBaseUnits(%s, %d) = %s, want %s", tc.in, tc.decimals, got, tc.want)
		}
	}
	if got := FormatBaseUnits(nil, 6); got != "0" {
		t.Fatalf("unexpected nil format %q", got)
	}
}

func TestParsePercent(t *testing.T) {
	d, err := ParsePercent("")
	if err != nil || !d.IsZero() {
		t.Fatalf("expected empty percentage to be zero, got %v %v", d, err)
	}
	d, err = ParsePercent(" 0.5 ")
	if err != nil || d.String() != "0.5" {
		t.Fatalf("unexpected percentage %v %v", d, err)
	}
	if _, err := ParsePercent("half"); err == nil {
		t.Fatal("expected non-numeric percentage to fail")
	}
}

func TestParsePositiveInteger(t *testing.T) {
	n, err := ParsePositiveInteger("200000", 128)
	if err != nil || n.Int64() != 200000 {
		t.Fatalf("unexpected result %v %v", n, err)
	}
	for _, raw := range []string{"", "0", "-5", "1.5", "gas", "Infinity"} {
		if _, err := ParsePositiveInteger(raw, 128); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 128).String()
	if _, err := ParsePositiveInteger(huge, 128); err == nil {
		t.Fatal("expected overflow to be rejected")
	}
}
