// Package stats computes behavioral baselines over login history.
//
// HourBaseline treats hour-of-day as a flat 0-23 scale. That is known to be
// wrong near midnight: a user who logs in at 23:00 and 01:00 gets a mean near
// 12:00 and a very wide deviation. CircularHourBaseline treats hours as angles
// on a 24h clock and avoids the wrap, at the cost of different alerting.
package stats

import (
	"errors"
	"math"
	"time"
)

// DefaultMinSamples is the smallest history a baseline is computed from
const DefaultMinSamples = 10

const hoursPerDay = 24.0

// deviationEpsilon absorbs float noise so a login exactly at the mean of a
// zero-variance history is never reported as deviating
const deviationEpsilon = 1e-9

// ErrInsufficientData is returned when there are too few samples for a baseline.
// Callers should skip the rule rather than treat it as a failure.
var ErrInsufficientData = errors.New("insufficient data for baseline")

// Baseline summarizes a user's login hours
type Baseline struct {
	Mean     float64
	StdDev   float64
	Samples  int
	Circular bool
}

// HourBaseline projects timestamps to their UTC hour and returns the mean and
// population standard deviation of those hours
func HourBaseline(timestamps []time.Time, minSamples int) (Baseline, error) {
	if len(timestamps) == 0 || len(timestamps) < minSamples {
		return Baseline{}, ErrInsufficientData
	}

	n := float64(len(timestamps))
	var sum float64
	for _, ts := range timestamps {
		sum += float64(ts.UTC().Hour())
	}
	mean := sum / n

	var sq float64
	for _, ts := range timestamps {
		d := float64(ts.UTC().Hour()) - mean
		sq += d * d
	}

	return Baseline{
		Mean:    mean,
		StdDev:  math.Sqrt(sq / n),
		Samples: len(timestamps),
	}, nil
}

// CircularHourBaseline computes the vector mean of login hours on a 24h clock.
// StdDev is the circular standard deviation sqrt(-2 ln R) expressed in hours.
func CircularHourBaseline(timestamps []time.Time, minSamples int) (Baseline, error) {
	if len(timestamps) == 0 || len(timestamps) < minSamples {
		return Baseline{}, ErrInsufficientData
	}

	var sumSin, sumCos float64
	for _, ts := range timestamps {
		theta := hourToAngle(float64(ts.UTC().Hour()))
		sumSin += math.Sin(theta)
		sumCos += math.Cos(theta)
	}

	n := float64(len(timestamps))
	s, c := sumSin/n, sumCos/n
	r := math.Min(math.Hypot(s, c), 1)

	b := Baseline{Samples: len(timestamps), Circular: true}
	if r < deviationEpsilon {
		// Hours are spread evenly around the clock; nothing is unusual
		b.StdDev = math.Inf(1)
		return b, nil
	}

	mean := angleToHour(math.Atan2(s, c))
	if mean < 0 {
		mean += hoursPerDay
	}
	b.Mean = mean
	b.StdDev = angleToHour(math.Sqrt(-2 * math.Log(r)))
	return b, nil
}

// Deviation returns how far hour is from the baseline mean. Circular baselines
// measure the shorter way around the clock.
func (b Baseline) Deviation(hour int) float64 {
	d := math.Abs(float64(hour) - b.Mean)
	if b.Circular && d > hoursPerDay/2 {
		d = hoursPerDay - d
	}
	return d
}

// Exceeds reports whether hour deviates from the mean by more than k standard deviations
func (b Baseline) Exceeds(hour int, k float64) bool {
	return b.Deviation(hour) > k*b.StdDev+deviationEpsilon
}

func hourToAngle(h float64) float64 {
	return h * 2 * math.Pi / hoursPerDay
}

func angleToHour(a float64) float64 {
	return a * hoursPerDay / (2 * math.Pi)
}
