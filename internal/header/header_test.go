package header

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"simdb/internal/errors"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		signalPath string
		axis       Axis
		params     map[string]float64
	}{
		{
			name:       "two parameters scientific notation",
			raw:        "/I4/Out (Nm_In_W=2.4e-07,Nm_Out_W=2.4e-07) X",
			signalPath: "/I4/Out",
			axis:       AxisX,
			params:     map[string]float64{"Nm_In_W": 2.4e-07, "Nm_Out_W": 2.4e-07},
		},
		{
			name:       "y axis",
			raw:        "/I4/Out (Nm_In_W=2.4e-07) Y",
			signalPath: "/I4/Out",
			axis:       AxisY,
			params:     map[string]float64{"Nm_In_W": 2.4e-07},
		},
		{
			name:       "signed exponent",
			raw:        "/A (P=2.28e-5,Q=-1.5E+3) X",
			signalPath: "/A",
			axis:       AxisX,
			params:     map[string]float64{"P": 2.28e-5, "Q": -1.5e3},
		},
		{
			name:       "whitespace around tokens",
			raw:        "  /net7 ( W = 1.0 , L = 5.4e-7 )  Y ",
			signalPath: "/net7",
			axis:       AxisY,
			params:     map[string]float64{"W": 1.0, "L": 5.4e-7},
		},
		{
			name:       "empty parameter list",
			raw:        "/Vout () X",
			signalPath: "/Vout",
			axis:       AxisX,
			params:     map[string]float64{},
		},
		{
			name:       "plain decimal",
			raw:        "/I0/D (Vb=0.75) X",
			signalPath: "/I0/D",
			axis:       AxisX,
			params:     map[string]float64{"Vb": 0.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}
			if h.SignalPath != tt.signalPath {
				t.Errorf("SignalPath = %q, want %q", h.SignalPath, tt.signalPath)
			}
			if h.Axis != tt.axis {
				t.Errorf("Axis = %q, want %q", h.Axis, tt.axis)
			}
			if len(h.Params) != len(tt.params) {
				t.Fatalf("Params = %v, want %v", h.Params, tt.params)
			}
			for name, want := range tt.params {
				got, ok := h.Params[name]
				if !ok {
					t.Errorf("missing parameter %q", name)
					continue
				}
				if math.Abs(got-want) > math.Abs(want)*1e-12 {
					t.Errorf("Params[%q] = %g, want %g", name, got, want)
				}
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no parentheses", "/I4/Out X"},
		{"missing axis", "/I4/Out (W=1.0)"},
		{"bad axis letter", "/I4/Out (W=1.0) Z"},
		{"non-numeric value", "/I4/Out (W=abc) X"},
		{"bare parameter token", "/I4/Out (W) X"},
		{"empty parameter name", "/I4/Out (=1.0) X"},
		{"duplicate parameter", "/I4/Out (W=1.0,W=2.0) X"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", tt.raw)
			}
			if !errors.HasCode(err, errors.MalformedHeader) {
				t.Errorf("Parse(%q) error code = %v, want MALFORMED_HEADER", tt.raw, err)
			}
		})
	}
}

// Parameters must not silently default to zero on a bad numeral.
func TestParseDoesNotDefaultBadValues(t *testing.T) {
	_, err := Parse("/A (P=1.0,Q=oops) X")
	if err == nil {
		t.Fatal("header with one bad value should fail entirely")
	}
}

func TestParamNamesSorted(t *testing.T) {
	h, err := Parse("/A (b=2.0,a=1.0,c=3.0) X")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	names := h.ParamNames()
	want := []string{"a", "b", "c"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("ParamNames = %v, want %v", names, want)
	}
}

func TestPairMatches(t *testing.T) {
	x, err := Parse("/I4/Out (Nm_In_W=2.4e-07,Nm_Out_W=2.4e-07) X")
	if err != nil {
		t.Fatalf("Parse X failed: %v", err)
	}
	y, err := Parse("/I4/Out (Nm_In_W=2.4e-07,Nm_Out_W=2.4e-07) Y")
	if err != nil {
		t.Fatalf("Parse Y failed: %v", err)
	}
	if !PairMatches(x, y) {
		t.Error("identical headers differing only in axis should pair")
	}

	other, err := Parse("/I4/Out (Nm_In_W=4.8e-07,Nm_Out_W=2.4e-07) Y")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if PairMatches(x, other) {
		t.Error("headers with different parameter values should not pair")
	}

	if PairMatches(y, x) {
		t.Error("pairing is ordered: X first, then Y")
	}
}

// Re-serializing the parsed parameter map and parsing again must yield the
// same map.
func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		"/I4/Out (Nm_In_W=2.4e-07,Nm_Out_W=4.8e-07) X",
		"/A (P=1.0e-4) Y",
		"/net3 (W=0.5,L=5.4e-7,Temp=27) X",
		"/Vout () X",
	}

	for _, raw := range inputs {
		h, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}

		// Rebuild a header string from the parsed map.
		var pairs []string
		for _, name := range h.ParamNames() {
			pairs = append(pairs, fmt.Sprintf("%s=%g", name, h.Params[name]))
		}
		rebuilt := fmt.Sprintf("%s (%s) %s", h.SignalPath, strings.Join(pairs, ","), h.Axis)

		h2, err := Parse(rebuilt)
		if err != nil {
			t.Fatalf("Parse(rebuilt %q) failed: %v", rebuilt, err)
		}
		if h2.Fingerprint() != h.Fingerprint() {
			t.Errorf("round trip changed fingerprint: %q vs %q", h.Fingerprint(), h2.Fingerprint())
		}
	}
}
