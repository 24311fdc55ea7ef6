package ticket

// stream is a 32-bit mulberry generator. A client rebuilding grids from serials
// must run this package's algorithm; the draw order differs from older
// generators seeded the same way.
type stream struct {
	state uint32
}

func newStream(serial int) *stream {
	return &stream{state: uint32(serial*911 + 131)}
}

// float returns a value in [0, 1).
func (s *stream) float() float64 {
	s.state += 0x6d2b79f5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// intn returns a value in [0, n).
func (s *stream) intn(n int) int {
	return int(s.float() * float64(n))
}

// pick returns n distinct elements of pool using a seeded Fisher-Yates shuffle.
func (s *stream) pick(pool []int, n int) []int {
	a := append([]int(nil), pool...)
	for i := len(a) - 1; i > 0; i-- {
		j := s.intn(i + 1)
		a[i], a[j] = a[j], a[i]
	}
	return a[:n]
}
