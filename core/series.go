package core

// Series is a fixed-capacity ring buffer of samples. Once full, every Push
// drops the oldest sample.
type Series[T int | float64] struct {
	buf   []T
	start int
	n     int
}

// NewSeries returns an empty series holding at most capacity samples.
func NewSeries[T int | float64](capacity int) *Series[T] {
	return &Series[T]{buf: make([]T, max(capacity, 1))}
}

// Push appends v, evicting the oldest sample when the series is full.
func (s *Series[T]) Push(v T) {
	if s.n < len(s.buf) {
		s.buf[(s.start+s.n)%len(s.buf)] = v
		s.n++
		return
	}
	s.buf[s.start] = v
	s.start = (s.start + 1) % len(s.buf)
}

// Len returns the number of samples held.
func (s *Series[T]) Len() int { return s.n }

// Cap returns the maximum number of samples held.
func (s *Series[T]) Cap() int { return len(s.buf) }

// Last returns the newest sample.
func (s *Series[T]) Last() (T, bool) {
	var zero T
	if s.n == 0 {
		return zero, false
	}
	return s.buf[(s.start+s.n-1)%len(s.buf)], true
}

// Values copies the samples out, oldest first.
func (s *Series[T]) Values() []T {
	out := make([]T, s.n)
	for i := range out {
		out[i] = s.buf[(s.start+i)%len(s.buf)]
	}
	return out
}
