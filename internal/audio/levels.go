package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// LevelMeter keeps the most recent samples of a capture stream and reports
// their loudness. Writes come from one goroutine; reads may be concurrent.
type LevelMeter struct {
	mu      sync.RWMutex
	samples []int16
	head    int // next write position
	count   int // valid samples, up to capacity
}

// NewLevelMeter creates a meter over the last capacity samples.
func NewLevelMeter(capacity int) *LevelMeter {
	return &LevelMeter{samples: make([]int16, capacity)}
}

// WritePCM appends S16LE pcm, overwriting the oldest samples when full.
func (m *LevelMeter) WritePCM(pcm []byte) {
	m.Write(BytesToInt16(pcm))
}

// Write appends samples, overwriting the oldest when full.
func (m *LevelMeter) Write(samples []int16) {
	if len(samples) == 0 || len(m.samples) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	capacity := len(m.samples)
	for _, sample := range samples {
		m.samples[m.head] = sample
		m.head = (m.head + 1) % capacity
		if m.count < capacity {
			m.count++
		}
	}
}

// Recent returns up to n most recent samples in chronological order.
func (m *LevelMeter) Recent(n int) []int16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 || n <= 0 {
		return nil
	}

	n = min(n, m.count)
	capacity := len(m.samples)
	start := (m.head - n + capacity) % capacity

	out := make([]int16, n)
	for i := range n {
		out[i] = m.samples[(start+i)%capacity]
	}

	return out
}

// Level returns the RMS of the buffered samples scaled to [0, 1].
func (m *LevelMeter) Level() float64 {
	samples := m.Recent(len(m.samples))
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}

	return min(math.Sqrt(sum/float64(len(samples))), 1)
}

// Reset drops all buffered samples.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.head = 0
	m.count = 0
}

// BytesToInt16 converts S16LE (signed 16-bit little-endian) bytes to int16 samples.
func BytesToInt16(data []byte) []int16 {
	numSamples := len(data) / 2
	if numSamples == 0 {
		return nil
	}

	samples := make([]int16, numSamples)
	for i := range numSamples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}
