package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMoneyFromDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{"1", 100, nil},
		{"1.50000", 150, nil},
		{"0.01", 1, nil},
		{"2.5e1", 2500, nil},
		{"100000000000.00", MaxAmountCents, nil},
		{"-3.20", -320, nil},
		{"12.345", 0, ErrAmountPrecision},
		{"0.001", 0, ErrAmountPrecision},
		{"1e-30", 0, ErrAmountPrecision},
		{"100000000000.01", 0, ErrAmountTooLarge},
		{"1000000000000", 0, ErrAmountTooLarge},
		{"1e40000000", 0, ErrAmountTooLarge},
		{"-1e40000000", 0, ErrAmountTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			start := time.Now()
			got, err := MoneyFromDecimal(decimal.RequireFromString(tc.in))
			if time.Since(start) > time.Second {
				t.Fatalf("conversion took %s", time.Since(start))
			}
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v (%d cents)", tc.err, err, got.Cents)
				}
				return
			}
			if err != nil || got.Cents != tc.want {
				t.Fatalf("expected %d cents, got %d (err=%v)", tc.want, got.Cents, err)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		3050: "30.50",
		2575: "25.75",
		1:    "0.01",
		100:  "1.00",
		0:    "0.00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 3050}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"amount":30.50}` {
		t.Fatalf("unexpected encoding %s", b)
	}

	for _, in := range []string{`25.75`, `"25.75"`, `25.750`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if m.Cents != 2575 {
			t.Fatalf("%s decoded to %d cents", in, m.Cents)
		}
	}

	rejected := map[string]error{
		`"lots"`:            ErrInvalidAmount,
		`25.754`:            ErrAmountPrecision,
		`1e40000000`:        ErrAmountTooLarge,
		`"100000000000.01"`: ErrAmountTooLarge,
	}
	for in, want := range rejected {
		var m Money
		err := json.Unmarshal([]byte(in), &m)
		if !errors.Is(err, want) {
			t.Fatalf("%s: expected %v, got %v", in, want, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "amount" {
			t.Fatalf("%s: expected an amount validation error, got %T", in, err)
		}
	}
}

func TestMoneySumHasNoDrift(t *testing.T) {
	var total Money
	for i := 0; i < 10; i++ {
		m, err := MoneyFromDecimal(decimal.RequireFromString("0.10"))
		if err != nil {
			t.Fatal(err)
		}
		total = total.Add(m)
	}
	if total.Cents != 100 || total.String() != "1.00" {
		t.Fatalf("expected 1.00, got %s", total)
	}
}
