package probe

import (
	"fmt"
	"time"
)

// Default tuning values, applied by NewSpec when the caller leaves a field
// at its zero value.
const (
	DefaultURL            = "/"
	DefaultTimeout         = 2 * time.Second
	DefaultInterval        = 5 * time.Second
	DefaultWindow          = 8
	DefaultThreshold       = 3
	DefaultExpectedStatus  = 200

	// MaxWindow bounds the history bitmaps to the width of a uint64.
	MaxWindow = 64

	// AvgRate caps the exponential smoothing denominator (spec.md §3/§4.3).
	AvgRate = 4
)

// Spec holds the immutable parameters for probing one backend. Build it
// with NewSpec; once built it is never mutated (Target.spec is a value
// copy, not a pointer, so there is nothing to race on).
type Spec struct {
	URL            string
	Request        string
	Timeout        time.Duration
	Interval       time.Duration
	Window         int
	Threshold      int
	Initial        int
	ExpectedStatus int
}

// RawSpec is the caller-facing, YAML/JSON-friendly input to NewSpec. Zero
// values mean "use the default". RawSpec mirrors the declarative shape a
// VCL-style backend definition would carry.
type RawSpec struct {
	URL            string        `yaml:"url" json:"url"`
	Request        string        `yaml:"request" json:"request"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	Interval       time.Duration `yaml:"interval" json:"interval"`
	Window         int           `yaml:"window" json:"window"`
	Threshold      int           `yaml:"threshold" json:"threshold"`
	Initial        *int          `yaml:"initial" json:"initial"`
	ExpectedStatus int           `yaml:"expected_status" json:"expected_status"`
}

// NewSpec applies defaults and enforces spec.md §3 invariant 1: a window
// above MaxWindow is an error, threshold is clamped to window, and initial
// is clamped to [0, threshold].
func NewSpec(raw RawSpec) (Spec, error) {
	s := Spec{
		URL:            raw.URL,
		Request:        raw.Request,
		Timeout:        raw.Timeout,
		Interval:       raw.Interval,
		Window:         raw.Window,
		Threshold:      raw.Threshold,
		ExpectedStatus: raw.ExpectedStatus,
	}

	if s.URL == "" {
		s.URL = DefaultURL
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Window <= 0 {
		s.Window = DefaultWindow
	}
	if s.Window > MaxWindow {
		return Spec{}, fmt.Errorf("probe: window %d exceeds max %d", s.Window, MaxWindow)
	}
	if s.Threshold <= 0 {
		s.Threshold = DefaultThreshold
	}
	if s.Threshold > s.Window {
		s.Threshold = s.Window
	}
	if s.ExpectedStatus <= 0 {
		s.ExpectedStatus = DefaultExpectedStatus
	}

	if raw.Initial != nil {
		s.Initial = *raw.Initial
	} else {
		s.Initial = s.Threshold - 1
	}
	if s.Initial < 0 {
		s.Initial = 0
	}
	if s.Initial > s.Threshold {
		s.Initial = s.Threshold
	}

	return s, nil
}

// buildRequest produces the fixed bytes sent on every probe attempt
// (spec.md §4.1). host may be empty, in which case no Host header is
// emitted.
func buildRequest(spec Spec, host string) []byte {
	if spec.Request != "" {
		return []byte(spec.Request)
	}

	req := fmt.Sprintf("GET %s HTTP/1.1\r\n", spec.URL)
	if host != "" {
		req += fmt.Sprintf("Host: %s\r\n", host)
	}
	req += "Connection: close\r\n\r\n"
	return []byte(req)
}
