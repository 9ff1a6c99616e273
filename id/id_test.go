package id_test

import (
	"testing"

	"github.com/alcabon/callout/id"
)

func TestNew_HasPrefix(t *testing.T) {
	tests := []struct {
		name   string
		make   func() id.ID
		prefix id.Prefix
	}{
		{"continuation", id.NewContinuationID, id.PrefixContinuation},
		{"call", id.NewCallID, id.PrefixCall},
		{"archive", id.NewArchiveID, id.PrefixArchive},
		{"broker", id.NewBrokerID, id.PrefixBroker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.make()
			if got.IsNil() {
				t.Fatal("new ID is nil")
			}
			if got.Prefix() != tt.prefix {
				t.Errorf("Prefix() = %q, want %q", got.Prefix(), tt.prefix)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	orig := id.NewContinuationID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", orig.String(), err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip: %q != %q", parsed.String(), orig.String())
	}
}

func TestParse_RejectsEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("Parse(\"\") succeeded, want error")
	}
}

func TestParseWithPrefix_RejectsWrongPrefix(t *testing.T) {
	callID := id.NewCallID()
	if _, err := id.ParseContinuationID(callID.String()); err == nil {
		t.Error("ParseContinuationID accepted a call ID")
	}
}

func TestNil_Properties(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
}

func TestMarshalText_RoundTrip(t *testing.T) {
	orig := id.NewArchiveID()

	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded id.ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded.String() != orig.String() {
		t.Errorf("round trip: %q != %q", decoded.String(), orig.String())
	}
}

func TestUnmarshalText_EmptyYieldsNil(t *testing.T) {
	var decoded id.ID
	if err := decoded.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil): %v", err)
	}
	if !decoded.IsNil() {
		t.Error("UnmarshalText(nil) did not yield the Nil ID")
	}
}

func TestScan_SQLValues(t *testing.T) {
	orig := id.NewContinuationID()

	var fromString id.ID
	if err := fromString.Scan(orig.String()); err != nil {
		t.Fatalf("Scan(string): %v", err)
	}
	if fromString.String() != orig.String() {
		t.Errorf("Scan(string) = %q, want %q", fromString.String(), orig.String())
	}

	var fromNull id.ID
	if err := fromNull.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !fromNull.IsNil() {
		t.Error("Scan(nil) did not yield the Nil ID")
	}

	var fromInt id.ID
	if err := fromInt.Scan(42); err == nil {
		t.Error("Scan(int) succeeded, want error")
	}
}

func TestValue_NilIsNULL(t *testing.T) {
	v, err := id.Nil.Value()
	if err != nil {
		t.Fatalf("Nil.Value(): %v", err)
	}
	if v != nil {
		t.Errorf("Nil.Value() = %v, want nil", v)
	}

	nonNil := id.NewBrokerID()
	v, err = nonNil.Value()
	if err != nil {
		t.Fatalf("Value(): %v", err)
	}
	if v != nonNil.String() {
		t.Errorf("Value() = %v, want %q", v, nonNil.String())
	}
}
