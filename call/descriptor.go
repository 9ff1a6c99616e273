package call

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Descriptor describes one outbound HTTP call belonging to a
// continuation. It is immutable once submitted: the engine copies it
// into a PendingCall at registration and never writes to it again.
type Descriptor struct {
	// Label identifies this call within its continuation's call set.
	// It must be unique per continuation; outcomes carry it back so the
	// resume handler can tell results apart.
	Label string `json:"label"`

	// Method is the HTTP method. Defaults to GET when empty.
	Method string `json:"method,omitempty"`

	// URL is the target endpoint. Must be absolute http or https.
	URL string `json:"url"`

	// Header holds extra request headers, if any.
	Header http.Header `json:"header,omitempty"`

	// Body is the request body. Nil means no body.
	Body []byte `json:"body,omitempty"`

	// Timeout is the per-call deadline. Zero means the broker's
	// DefaultCallTimeout applies. A call that exceeds it settles as
	// timed-out even while its continuation's deadline is still running.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Get builds a GET descriptor for the given label and URL.
func Get(label, rawURL string) Descriptor {
	return Descriptor{Label: label, Method: http.MethodGet, URL: rawURL}
}

// Post builds a POST descriptor with the given body.
func Post(label, rawURL string, body []byte) Descriptor {
	return Descriptor{Label: label, Method: http.MethodPost, URL: rawURL, Body: body}
}

// EffectiveMethod returns the descriptor's method, defaulting to GET.
func (d *Descriptor) EffectiveMethod() string {
	if d.Method == "" {
		return http.MethodGet
	}
	return d.Method
}

// Host returns the host component of the descriptor's URL, or an empty
// string if the URL does not parse. Used for per-host rate limiting.
func (d *Descriptor) Host() string {
	u, err := url.Parse(d.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Validate checks that the descriptor is well-formed: a non-empty label
// and an absolute http(s) URL.
func (d *Descriptor) Validate() error {
	if d.Label == "" {
		return fmt.Errorf("call: descriptor has empty label")
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("call %q: parse url: %w", d.Label, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("call %q: url scheme %q is not http or https", d.Label, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("call %q: url has no host", d.Label)
	}

	return nil
}
