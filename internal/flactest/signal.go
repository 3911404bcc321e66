package flactest

import (
	"math"
	"math/rand"
)

// Sine returns n samples of a sine wave with the given period in samples,
// scaled to half the range of bps bits per sample.
func Sine(n int, bps uint8, period float64) []int32 {
	amp := float64(int64(1)<<(bps-1)-1) / 2
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = int32(amp * math.Sin(2*math.Pi*float64(i)/period))
	}
	return samples
}

// Noise returns n pseudo-random samples spanning the full range of bps bits
// per sample, seeded by seed.
func Noise(n int, bps uint8, seed int64) []int32 {
	r := rand.New(rand.NewSource(seed))
	lo := -(int64(1) << (bps - 1))
	span := int64(1) << bps
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = int32(lo + r.Int63n(span))
	}
	return samples
}

// Constant returns n samples of value x.
func Constant(n int, x int32) []int32 {
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = x
	}
	return samples
}

// Scale returns a copy of samples multiplied by 2^shift.
func Scale(samples []int32, shift uint) []int32 {
	scaled := make([]int32, len(samples))
	for i, s := range samples {
		scaled[i] = s << shift
	}
	return scaled
}
