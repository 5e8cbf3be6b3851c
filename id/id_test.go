package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/tokenledger/id"
)

func TestNewPrincipal(t *testing.T) {
	p := id.NewPrincipal()
	if p.IsAnonymous() {
		t.Fatal("expected non-anonymous principal")
	}
	if !strings.HasPrefix(p.String(), "prn_") {
		t.Errorf("expected prefix %q, got %q", "prn_", p.String())
	}
}

func TestPrincipalUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := id.NewPrincipal().String()
		if seen[s] {
			t.Fatalf("duplicate principal generated: %s", s)
		}
		seen[s] = true
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewPrincipal()
	parsed, err := id.ParsePrincipal(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !parsed.Equal(original) {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestParseRejection(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Garbage", "not-a-typeid"},
		{"WrongPrefix", "plan_01h2xcejqtf2nbrexx3vqjhp41"},
		{"PrefixOnly", "prn_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.ParsePrincipal(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestAnonymous(t *testing.T) {
	if !id.Anonymous.IsAnonymous() {
		t.Fatal("zero value should be anonymous")
	}
	if id.Anonymous.String() != "" {
		t.Errorf("anonymous String: got %q", id.Anonymous.String())
	}
	if id.Anonymous.Equal(id.NewPrincipal()) {
		t.Error("anonymous should not equal a generated principal")
	}
}

func TestPrincipalAsMapKey(t *testing.T) {
	a := id.NewPrincipal()
	b := id.NewPrincipal()

	m := map[id.Principal]int{a: 1, b: 2}
	reparsed, err := id.ParsePrincipal(a.String())
	if err != nil {
		t.Fatal(err)
	}
	if m[reparsed] != 1 {
		t.Error("reparsed principal should hit the same map entry")
	}
}

func TestPrincipalJSON(t *testing.T) {
	type payload struct {
		Owner id.Principal `json:"owner"`
	}

	original := id.NewPrincipal()
	out, err := json.Marshal(payload{Owner: original})
	if err != nil {
		t.Fatal(err)
	}

	var p payload
	if err := json.Unmarshal(out, &p); err != nil {
		t.Fatal(err)
	}
	if !p.Owner.Equal(original) {
		t.Errorf("round-trip mismatch: %q != %q", p.Owner.String(), original.String())
	}

	// Anonymous marshals to the empty string and back.
	out, err = json.Marshal(payload{})
	if err != nil {
		t.Fatal(err)
	}
	var anon payload
	if err := json.Unmarshal(out, &anon); err != nil {
		t.Fatal(err)
	}
	if !anon.Owner.IsAnonymous() {
		t.Error("expected anonymous after round trip")
	}
}

func TestPrincipalScan(t *testing.T) {
	original := id.NewPrincipal()

	var p id.Principal
	if err := p.Scan(original.String()); err != nil {
		t.Fatal(err)
	}
	if !p.Equal(original) {
		t.Errorf("scan mismatch: %q != %q", p.String(), original.String())
	}

	var empty id.Principal
	if err := empty.Scan(""); err != nil {
		t.Fatal(err)
	}
	if !empty.IsAnonymous() {
		t.Error("empty string should scan to anonymous")
	}

	if err := p.Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}
