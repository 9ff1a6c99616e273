package call_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/alcabon/callout/call"
)

// ──────────────────────────────────────────────────
// Descriptor
// ──────────────────────────────────────────────────

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       call.Descriptor
		wantErr bool
	}{
		{"valid get", call.Get("weather", "https://api.example.com/weather"), false},
		{"valid post", call.Post("notify", "http://internal:8080/notify", []byte(`{}`)), false},
		{"empty label", call.Descriptor{URL: "https://example.com"}, true},
		{"no scheme", call.Descriptor{Label: "x", URL: "example.com/path"}, true},
		{"ftp scheme", call.Descriptor{Label: "x", URL: "ftp://example.com"}, true},
		{"no host", call.Descriptor{Label: "x", URL: "https://"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDescriptor_EffectiveMethod(t *testing.T) {
	d := call.Descriptor{Label: "x", URL: "https://example.com"}
	if got := d.EffectiveMethod(); got != http.MethodGet {
		t.Errorf("EffectiveMethod() = %q, want GET", got)
	}

	d.Method = http.MethodDelete
	if got := d.EffectiveMethod(); got != http.MethodDelete {
		t.Errorf("EffectiveMethod() = %q, want DELETE", got)
	}
}

func TestDescriptor_Host(t *testing.T) {
	d := call.Get("x", "https://api.example.com:8443/v1/weather")
	if got := d.Host(); got != "api.example.com:8443" {
		t.Errorf("Host() = %q, want %q", got, "api.example.com:8443")
	}
}

// ──────────────────────────────────────────────────
// Outcome
// ──────────────────────────────────────────────────

func TestOutcome_Constructors(t *testing.T) {
	ok := call.Succeeded("a", 200, []byte(`{"temp":21}`), 50*time.Millisecond)
	if !ok.OK() {
		t.Error("Succeeded outcome should be OK")
	}
	if ok.Status != call.StatusSucceeded || ok.HTTPStatus != 200 {
		t.Errorf("Succeeded = %+v", ok)
	}

	failed := call.Failed("b", 503, nil, "upstream returned 503 Service Unavailable", time.Second)
	if failed.OK() {
		t.Error("Failed outcome should not be OK")
	}
	if failed.Status != call.StatusFailed || failed.Error == "" {
		t.Errorf("Failed = %+v", failed)
	}

	timedOut := call.TimedOut("c", 2*time.Minute)
	if timedOut.Status != call.StatusTimedOut {
		t.Errorf("TimedOut.Status = %q", timedOut.Status)
	}
	if timedOut.Error == "" {
		t.Error("TimedOut outcome should carry an error detail")
	}

	cancelled := call.Cancelled("d")
	if cancelled.Status != call.StatusCancelled {
		t.Errorf("Cancelled.Status = %q", cancelled.Status)
	}
}

// ──────────────────────────────────────────────────
// PendingCall
// ──────────────────────────────────────────────────

func TestPendingCall_Settled(t *testing.T) {
	pc := call.NewPending(call.Get("a", "https://example.com"))
	if pc.Settled() {
		t.Error("fresh PendingCall should not be settled")
	}
	if pc.ID.IsNil() {
		t.Error("NewPending should assign an ID")
	}

	pc.Outcome = call.Succeeded("a", 200, nil, time.Millisecond)
	if !pc.Settled() {
		t.Error("PendingCall with outcome should be settled")
	}
}
