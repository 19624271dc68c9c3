// Package identity recognizes returning users by a coarse summary of their
// voice. It is a convenience for greetings, not speaker verification.
package identity

import "math"

// Features summarizes the raw samples of one utterance.
type Features struct {
	Mean   float64 `yaml:"mean"`
	Std    float64 `yaml:"std"`
	Max    float64 `yaml:"max"`
	Min    float64 `yaml:"min"`
	Energy float64 `yaml:"energy"`
}

// ExtractFeatures computes the summary of samples. ok is false for an empty
// slice.
func ExtractFeatures(samples []int16) (f Features, ok bool) {
	if len(samples) == 0 {
		return Features{}, false
	}

	n := float64(len(samples))
	f.Max = math.Inf(-1)
	f.Min = math.Inf(1)
	var sum, sumSq float64
	for _, s := range samples {
		v := float64(s)
		sum += v
		sumSq += v * v
		f.Max = math.Max(f.Max, v)
		f.Min = math.Min(f.Min, v)
	}
	f.Mean = sum / n
	f.Energy = sumSq / n
	// population std, same as numpy's default
	f.Std = math.Sqrt(math.Max(0, f.Energy-f.Mean*f.Mean))
	return f, true
}

func (f Features) values() [5]float64 {
	return [5]float64{f.Mean, f.Std, f.Max, f.Min, f.Energy}
}

// Similarity scores two summaries from 0 to 100. It is symmetric and gives
// 100 for identical summaries.
func Similarity(a, b Features) float64 {
	av, bv := a.values(), b.values()
	var total float64
	for i := range av {
		x, y := av[i], bv[i]
		if x == 0 && y == 0 {
			continue
		}
		total += math.Abs(x-y) / (math.Abs(x) + math.Abs(y) + 1e-10)
	}
	score := (1 - total/float64(len(av))) * 100
	return math.Max(0, math.Min(100, score))
}
