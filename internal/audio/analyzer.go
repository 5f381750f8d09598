package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// FFTSize is the number of samples per analysis frame
	FFTSize = 256
	// BinCount is the number of frequency bins reported per frame
	BinCount = FFTSize / 2

	smoothing   = 0.8
	minDecibels = -100.0
	maxDecibels = -30.0
)

// SampleSource provides the most recent output samples
type SampleSource interface {
	Samples(n int) []float64
}

// Analyzer turns the output stream into byte frequency magnitudes.
// Magnitudes are smoothed over time and mapped from decibels onto 0..255.
type Analyzer struct {
	mu       sync.Mutex
	src      SampleSource
	window   []float64
	smoothed []float64
}

// NewAnalyzer creates an analyzer with no source attached
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		window:   blackman(FFTSize),
		smoothed: make([]float64, BinCount),
	}
}

// Attach switches the analyzer to a new source
func (a *Analyzer) Attach(src SampleSource) {
	a.mu.Lock()
	a.src = src
	a.mu.Unlock()
}

// Detach drops the source and the smoothing history
func (a *Analyzer) Detach() {
	a.mu.Lock()
	a.src = nil
	clear(a.smoothed)
	a.mu.Unlock()
}

// ByteFrequencyData fills dst with up to BinCount magnitudes and returns how
// many were written. Without a source every bin is zero.
func (a *Analyzer) ByteFrequencyData(dst []uint8) int {
	n := min(len(dst), BinCount)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.src == nil {
		clear(dst[:n])
		return n
	}

	samples := a.src.Samples(FFTSize)
	frame := make([]float64, FFTSize)
	for i, s := range samples {
		frame[i] = s * a.window[i]
	}
	spectrum := fft.FFTReal(frame)

	for k := 0; k < BinCount; k++ {
		mag := cmplx.Abs(spectrum[k]) / FFTSize
		a.smoothed[k] = smoothing*a.smoothed[k] + (1-smoothing)*mag
		if k < n {
			dst[k] = toByte(a.smoothed[k])
		}
	}
	return n
}

func toByte(mag float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}
