package types

import (
	"encoding/json"
	"testing"
)

func TestAmountParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Zero", "0", "0", false},
		{"Small", "42", "42", false},
		{"Whitespace", "  1000  ", "1000", false},
		{"BeyondUint64", "340282366920938463463374607431768211455", "340282366920938463463374607431768211455", false},
		{"Empty", "", "", true},
		{"Negative", "-5", "", true},
		{"Hex", "0x10", "", true},
		{"Float", "1.5", "", true},
		{"Garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got.String(), tt.want)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   func() Amount
		want Amount
	}{
		{"Add", func() Amount { return NewAmount(100).Add(NewAmount(200)) }, NewAmount(300)},
		{"AddZero", func() Amount { return NewAmount(100).Add(Zero()) }, NewAmount(100)},
		{"Sum", func() Amount { return Sum(NewAmount(1), NewAmount(2), NewAmount(3)) }, NewAmount(6)},
		{"SumEmpty", func() Amount { return Sum() }, Zero()},
		{"BigAdd", func() Amount {
			huge := MustAmount("18446744073709551615") // max uint64
			return huge.Add(NewAmount(1))
		}, MustAmount("18446744073709551616")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.op()
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAmountSub(t *testing.T) {
	tests := []struct {
		name string
		a, b Amount
		want Amount
		ok   bool
	}{
		{"Exact", NewAmount(100), NewAmount(100), Zero(), true},
		{"Partial", NewAmount(500), NewAmount(200), NewAmount(300), true},
		{"Underflow", NewAmount(100), NewAmount(101), Zero(), false},
		{"ZeroMinusZero", Zero(), Zero(), Zero(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.Sub(tt.b)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAmountSubDoesNotMutate(t *testing.T) {
	a := NewAmount(500)
	b := NewAmount(200)
	if _, ok := a.Sub(b); !ok {
		t.Fatal("sub failed")
	}
	if !a.Equal(NewAmount(500)) || !b.Equal(NewAmount(200)) {
		t.Errorf("operands changed: a=%v b=%v", a, b)
	}
}

func TestAmountComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Amount
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", NewAmount(100), NewAmount(100), false, false, true},
		{"Less", NewAmount(50), NewAmount(100), true, false, false},
		{"Greater", NewAmount(200), NewAmount(100), false, true, false},
		{"ZeroValueEqualsZero", Amount{}, Zero(), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestAmountFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		decimals uint8
		want     string
	}{
		{"NoDecimals", NewAmount(42), 0, "42"},
		{"Whole", NewAmount(100000000), 8, "1.00000000"},
		{"Fractional", NewAmount(123456789), 8, "1.23456789"},
		{"SubUnit", NewAmount(5), 8, "0.00000005"},
		{"Zero", Zero(), 2, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.FormatUnits(tt.decimals); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountJSON(t *testing.T) {
	type payload struct {
		Value Amount `json:"value"`
	}

	out, err := json.Marshal(payload{Value: NewAmount(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"value":"1000"}` {
		t.Errorf("marshal: got %s", out)
	}

	// String and bare integer encodings both decode.
	for _, in := range []string{`{"value":"2500"}`, `{"value":2500}`} {
		var p payload
		if err := json.Unmarshal([]byte(in), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if !p.Value.Equal(NewAmount(2500)) {
			t.Errorf("unmarshal %s: got %v", in, p.Value)
		}
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"value":"-10"}`), &p); err == nil {
		t.Error("expected error for negative value")
	}
}

func TestAmountScan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    Amount
		wantErr bool
	}{
		{"String", "123", NewAmount(123), false},
		{"Bytes", []byte("456"), NewAmount(456), false},
		{"Int64", int64(789), NewAmount(789), false},
		{"Nil", nil, Zero(), false},
		{"NegativeInt64", int64(-1), Zero(), true},
		{"Unsupported", 3.14, Zero(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := a.Scan(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !a.Equal(tt.want) {
				t.Errorf("got %v, want %v", a, tt.want)
			}
		})
	}
}

func TestAmountUint64(t *testing.T) {
	if v, ok := NewAmount(42).Uint64(); !ok || v != 42 {
		t.Errorf("got %d, %v", v, ok)
	}
	if _, ok := MustAmount("18446744073709551616").Uint64(); ok {
		t.Error("expected overflow to report not ok")
	}
}
