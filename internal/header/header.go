// Package header parses simulator CSV column headers.
//
// A header names the measured signal, the sweep-parameter combination the
// column belongs to, and which axis of the curve it carries:
//
//	/I4/Out (Nm_In_W=2.4e-07,Nm_Out_W=2.4e-07) X
//
// Columns arrive in X,Y pairs; two headers that differ only in the trailing
// axis letter describe the two axes of the same data series.
package header

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"simdb/internal/errors"
)

// Axis identifies which axis of a curve a column carries.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
)

// Header is the parsed form of one column header.
type Header struct {
	SignalPath string
	Axis       Axis
	// Params maps sweep-parameter names to their values for this column.
	// Names are case-sensitive and preserved verbatim. Empty for a
	// non-swept series.
	Params map[string]float64
}

// headerPattern matches "<signal-path> (<name>=<value>,...) <X|Y>".
// The parameter list may be empty but the parentheses are mandatory.
var headerPattern = regexp.MustCompile(`^([^(]+?)\s*\(([^)]*)\)\s*([XY])\s*$`)

// Parse parses a raw column header. Headers that do not match the grammar,
// carry an unparseable numeric value, or repeat a parameter name fail with
// a MALFORMED_HEADER error.
func Parse(raw string) (*Header, error) {
	m := headerPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, errors.Newf(errors.MalformedHeader, "header %q does not match '<signal> (<name>=<value>,...) <X|Y>'", raw)
	}

	h := &Header{
		SignalPath: strings.TrimSpace(m[1]),
		Axis:       Axis(m[3]),
		Params:     map[string]float64{},
	}

	paramList := strings.TrimSpace(m[2])
	if paramList == "" {
		return h, nil
	}

	for _, pair := range strings.Split(paramList, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Newf(errors.MalformedHeader, "header %q: parameter %q is not a name=value pair", raw, strings.TrimSpace(pair))
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.Newf(errors.MalformedHeader, "header %q: empty parameter name", raw)
		}
		if _, dup := h.Params[name]; dup {
			return nil, errors.Newf(errors.MalformedHeader, "header %q: duplicate parameter %q", raw, name)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, errors.New(errors.MalformedHeader,
				"header "+strconv.Quote(raw)+": parameter "+strconv.Quote(name)+" has non-numeric value "+strconv.Quote(strings.TrimSpace(value)), err)
		}
		h.Params[name] = f
	}

	return h, nil
}

// ParamNames returns the parameter names in sorted order.
func (h *Header) ParamNames() []string {
	names := make([]string, 0, len(h.Params))
	for name := range h.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint returns a canonical "name=value,..." rendering of the header's
// signal path and parameter set, independent of axis. Two columns belong to
// the same data series exactly when their fingerprints are equal.
func (h *Header) Fingerprint() string {
	var b strings.Builder
	b.WriteString(h.SignalPath)
	b.WriteString(" (")
	for i, name := range h.ParamNames() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(h.Params[name], 'g', -1, 64))
	}
	b.WriteString(")")
	return b.String()
}

// PairMatches reports whether x and y are the two axes of one data series:
// an X header and a Y header over the same signal path and parameter set.
func PairMatches(x, y *Header) bool {
	return x.Axis == AxisX && y.Axis == AxisY && x.Fingerprint() == y.Fingerprint()
}
