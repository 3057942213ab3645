// Package metrics computes the scalar figures of merit stored for each
// imported data series. All functions are pure: they never touch storage
// and are computed exactly once, at import time.
package metrics

import (
	"math"

	"simdb/internal/errors"
)

// Metric names as stored in the metrics table.
const (
	ErrorPercentageName = "error_percentage"
	GainName            = "gain"
	BandwidthName       = "bandwidth"
)

// Units per metric name.
const (
	ErrorPercentageUnit = "%"
	GainUnit            = "ratio"
	BandwidthUnit       = "Hz"
)

// ErrUndefined marks a metric that has no defined value for the given data,
// e.g. a response that never crosses the -3 dB threshold. Callers store no
// metric row for an undefined value; it is absent, not zero.
var ErrUndefined = errors.Newf(errors.InvalidReference, "metric is undefined for this series")

// ErrorPercentage returns the mean absolute percentage deviation of y from
// the ideal reference value: mean(|y_i - ideal| / |ideal|) * 100.
// An ideal of zero is an INVALID_REFERENCE error, since percentage error is
// undefined against a zero reference.
func ErrorPercentage(y []float64, ideal float64) (float64, error) {
	if ideal == 0 {
		return 0, errors.Newf(errors.InvalidReference, "error percentage needs a nonzero reference value")
	}
	if len(y) == 0 {
		return 0, ErrUndefined
	}

	sum := 0.0
	for _, v := range y {
		sum += math.Abs(v-ideal) / math.Abs(ideal)
	}
	return sum / float64(len(y)) * 100, nil
}

// Gain returns the mean of y_i/x_i over indices where x_i is nonzero.
// Zero-x samples are excluded from the mean, not treated as infinite. If no
// sample has a nonzero x the gain is undefined.
func Gain(x, y []float64) (float64, error) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	sum := 0.0
	count := 0
	for i := 0; i < n; i++ {
		if x[i] == 0 {
			continue
		}
		sum += y[i] / x[i]
		count++
	}
	if count == 0 {
		return 0, ErrUndefined
	}
	return sum / float64(count), nil
}

// Bandwidth returns the x value (frequency) at which y first falls to
// 1/sqrt(2) of its first sample, linearly interpolated between the two
// bracketing samples. If y never crosses that threshold the bandwidth is
// undefined and ErrUndefined is returned.
func Bandwidth(x, y []float64) (float64, error) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 2 {
		return 0, ErrUndefined
	}

	// A sample within one part in 1e12 of the threshold counts as an exact
	// crossing; rounding in how the sample was produced must not turn a hit
	// into "never crosses".
	threshold := y[0] / math.Sqrt2
	tol := math.Abs(threshold) * 1e-12
	for i := 1; i < n; i++ {
		if y[i] > threshold+tol {
			continue
		}
		if math.Abs(y[i]-threshold) <= tol || y[i-1] == y[i] {
			return x[i], nil
		}
		// Interpolate between the bracketing samples.
		frac := (y[i-1] - threshold) / (y[i-1] - y[i])
		return x[i-1] + frac*(x[i]-x[i-1]), nil
	}
	return 0, ErrUndefined
}
