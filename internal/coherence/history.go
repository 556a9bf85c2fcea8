package coherence

const incoherenceWindowSize = 10

// history is a fixed-size rolling window of incoherence samples.
// Callers hold the tracker lock.
type history struct {
	samples []float64
	size    int
}

func newHistory(size int) *history {
	return &history{
		samples: make([]float64, 0, size),
		size:    size,
	}
}

func (h *history) push(sample float64) {
	h.samples = append(h.samples, sample)
	if len(h.samples) > h.size {
		h.samples = h.samples[1:]
	}
}

func (h *history) empty() bool {
	return len(h.samples) == 0
}

func (h *history) average() float64 {
	var sum float64
	for _, sample := range h.samples {
		sum += sample
	}

	return sum / float64(len(h.samples))
}
