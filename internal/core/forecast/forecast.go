// Package forecast turns a customer's purchase timeline into a predicted
// next-purchase date with a confidence score. Insufficient data is a normal
// outcome, never an error
package forecast

import (
	"fmt"
	"math"
	"time"
)

const (
	// minPurchases is the fewest timestamps a prediction needs
	minPurchases = 2

	// saturationIntervals is the sample size at which the confidence
	// sample-size factor reaches 1
	saturationIntervals = 5

	// bufferMinIntervals gates the stddev buffer: with fewer intervals the
	// buffer is noise rather than signal
	bufferMinIntervals = 3

	hoursPerDay = 24.0
)

// Prediction is the full forecast for one customer/category pair,
// recomputed from scratch every sync cycle
type Prediction struct {
	PurchaseDates     []time.Time `json:"purchase_dates"`
	AvgIntervalDays   float64     `json:"avg_interval_days"`
	StdDevDays        float64     `json:"std_dev_days"`
	Confidence        float64     `json:"confidence"`
	HasSufficientData bool        `json:"has_sufficient_data"`
	Reason            string      `json:"reason"`
	NextPurchaseDate  *time.Time  `json:"next_purchase_date,omitempty"`
}

// Predict computes a purchase-timing forecast from timestamps sorted oldest
// first. Fewer than 2 timestamps yields an insufficient-data prediction with
// confidence 0; it never returns an error
func Predict(timesAscending []time.Time) Prediction {
	n := len(timesAscending)
	if n < minPurchases {
		return Prediction{
			PurchaseDates:     append([]time.Time(nil), timesAscending...),
			HasSufficientData: false,
			Confidence:        0,
			Reason: fmt.Sprintf(
				"insufficient data: found %d purchase(s), need at least %d to compute an interval",
				n, minPurchases,
			),
		}
	}

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		days := timesAscending[i].Sub(timesAscending[i-1]).Hours() / hoursPerDay
		intervals = append(intervals, days)
	}

	avg := mean(intervals)
	sd := popStdDev(intervals, avg)
	conf := confidence(avg, sd, len(intervals))

	next := timesAscending[n-1].Add(durationDays(avg))
	if len(intervals) >= bufferMinIntervals {
		next = next.Add(durationDays(0.25 * sd))
	}

	return Prediction{
		PurchaseDates:     append([]time.Time(nil), timesAscending...),
		AvgIntervalDays:   avg,
		StdDevDays:        sd,
		Confidence:        conf,
		HasSufficientData: true,
		Reason:            reason(conf, len(intervals)),
		NextPurchaseDate:  &next,
	}
}

// confidence rewards consistency (low relative spread) and sample size
// (saturating at 5+ intervals): max(0, 1-cv/2) * min(1, n/5), rounded to
// 2 decimal places
func confidence(avg, sd float64, intervals int) float64 {
	var cv float64
	if avg != 0 {
		cv = sd / math.Abs(avg)
	}
	consistency := 1 - cv/2
	if consistency < 0 {
		consistency = 0
	}
	sample := float64(intervals) / saturationIntervals
	if sample > 1 {
		sample = 1
	}
	return math.Round(consistency*sample*100) / 100
}

func reason(conf float64, intervals int) string {
	switch {
	case conf >= 0.7:
		return fmt.Sprintf("high confidence: consistent pattern across %d interval(s)", intervals)
	case conf >= 0.4:
		return fmt.Sprintf("moderate confidence: some variation across %d interval(s)", intervals)
	default:
		return fmt.Sprintf("low confidence: irregular pattern across %d interval(s)", intervals)
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// popStdDev is the population standard deviation (divide by N, not N-1)
func popStdDev(xs []float64, avg float64) float64 {
	var ss float64
	for _, x := range xs {
		d := x - avg
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func durationDays(days float64) time.Duration {
	return time.Duration(days * hoursPerDay * float64(time.Hour))
}
