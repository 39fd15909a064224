package domain

import (
	"encoding/json"
	"testing"
)

func TestAmountAcceptsLegacyStringPayloads(t *testing.T) {
	var p Project
	payload := `{"id":"p1","type":"sub","name":"legacy","sales":"1200.5","purchase":800}`
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Sales != 1200.5 {
		t.Fatalf("Sales = %v, want 1200.5", p.Sales)
	}
	if p.Purchase != 800 {
		t.Fatalf("Purchase = %v, want 800", p.Purchase)
	}
}

func TestAmountCoercesUnparseableToZero(t *testing.T) {
	for _, payload := range []string{`"not a number"`, `null`, `""`} {
		var a Amount
		if err := a.UnmarshalJSON([]byte(payload)); err != nil {
			t.Fatalf("UnmarshalJSON(%s): %v", payload, err)
		}
		if a != 0 {
			t.Fatalf("UnmarshalJSON(%s) = %v, want 0", payload, a)
		}
	}
}

func TestAmountMarshalsAsNumber(t *testing.T) {
	raw, err := json.Marshal(Amount(350))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != "350" {
		t.Fatalf("Marshal = %s, want 350", raw)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   any
		want Amount
	}{
		{in: 100, want: 100},
		{in: "250.5", want: 250.5},
		{in: " 42 ", want: 42},
		{in: "garbage", want: 0},
		{in: nil, want: 0},
		{in: Amount(7), want: 7},
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.in); got != tc.want {
			t.Errorf("ParseAmount(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
