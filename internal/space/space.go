package space

import (
	"math/bits"
	"sync"

	"golang.org/x/exp/rand"
)

// Strategy selects how fresh identifiers are drawn.
type Strategy int

const (
	// StrategyPermutation walks a lazily built random permutation of [0, count).
	StrategyPermutation Strategy = iota
	// StrategyRejection redraws uniformly until an unseen identifier comes up.
	StrategyRejection
)

func (s Strategy) String() string {
	switch s {
	case StrategyPermutation:
		return "permutation"
	case StrategyRejection:
		return "rejection"
	}
	return "unknown"
}

type Option func(*Space)

func WithSeed(seed uint64) Option {
	return func(s *Space) { s.rng = rand.New(rand.NewSource(seed)) }
}

func WithStrategy(strategy Strategy) Option {
	return func(s *Space) { s.strategy = strategy }
}

// WithFullCoverage lets every identifier be drawn before the space reports
// exhaustion. Without it one identifier is held back.
func WithFullCoverage() Option {
	return func(s *Space) { s.full = true }
}

// Space samples distinct settings from the cross-product of its axes
// without enumerating it. Safe for concurrent use.
type Space struct {
	axes     []Axis
	count    uint64
	limit    uint64
	full     bool
	strategy Strategy
	rng      *rand.Rand

	mu      sync.Mutex
	drawn   uint64
	swaps   map[uint64]uint64
	sampled map[uint64]struct{}
}

// New validates the axes and computes the size of their cross-product.
func New(axes []Axis, opts ...Option) (*Space, error) {
	if len(axes) == 0 {
		return nil, ErrInvalidAxis
	}

	count := uint64(1)
	for i, axis := range axes {
		if len(axis) == 0 {
			return nil, &AxisError{Index: i, Wrapped: ErrInvalidAxis}
		}
		hi, lo := bits.Mul64(count, uint64(len(axis)))
		if hi != 0 {
			return nil, &AxisError{Index: i, Wrapped: ErrOverflow}
		}
		count = lo
	}

	s := &Space{
		axes:     make([]Axis, len(axes)),
		count:    count,
		strategy: StrategyPermutation,
		rng:      rand.New(rand.NewSource(1)),
		swaps:    make(map[uint64]uint64),
		sampled:  make(map[uint64]struct{}),
	}
	copy(s.axes, axes)

	for _, opt := range opts {
		opt(s)
	}

	s.limit = count - 1
	if s.full {
		s.limit = count
	}
	return s, nil
}

func (s *Space) Count() uint64 { return s.count }

func (s *Space) Axes() []Axis { return s.axes }

func (s *Space) Strategy() Strategy { return s.strategy }

// Drawn returns how many settings have been handed out so far.
func (s *Space) Drawn() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawn
}

func (s *Space) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawn >= s.limit
}

// SampleNew returns a setting that has not been returned before, or false
// once the space is exhausted.
func (s *Space) SampleNew() (Setting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drawn >= s.limit {
		return nil, false
	}

	var id uint64
	switch s.strategy {
	case StrategyRejection:
		id = s.drawRejection()
	default:
		id = s.drawPermutation()
	}
	s.drawn++

	return s.decode(id), true
}

// drawPermutation performs one step of a Fisher-Yates shuffle over
// [0, count) where untouched slots hold their own index.
func (s *Space) drawPermutation() uint64 {
	remaining := s.count - s.drawn
	j := s.rng.Uint64n(remaining)
	last := remaining - 1

	id := s.slot(j)
	s.swaps[j] = s.slot(last)
	delete(s.swaps, last)
	return id
}

func (s *Space) slot(i uint64) uint64 {
	if v, ok := s.swaps[i]; ok {
		return v
	}
	return i
}

func (s *Space) drawRejection() uint64 {
	for {
		id := s.rng.Uint64n(s.count)
		if _, seen := s.sampled[id]; seen {
			continue
		}
		s.sampled[id] = struct{}{}
		return id
	}
}

// Indices decomposes id into one index per axis, least-significant axis first.
func (s *Space) Indices(id uint64) ([]int, error) {
	if id >= s.count {
		return nil, ErrOutOfRange
	}
	idx := make([]int, len(s.axes))
	for i, axis := range s.axes {
		n := uint64(len(axis))
		idx[i] = int(id % n)
		id /= n
	}
	return idx, nil
}

// Encode is the inverse of Indices.
func (s *Space) Encode(indices []int) (uint64, error) {
	if len(indices) != len(s.axes) {
		return 0, ErrOutOfRange
	}
	var id uint64
	mult := uint64(1)
	for i, axis := range s.axes {
		if indices[i] < 0 || indices[i] >= len(axis) {
			return 0, &AxisError{Index: i, Wrapped: ErrOutOfRange}
		}
		id += uint64(indices[i]) * mult
		mult *= uint64(len(axis))
	}
	return id, nil
}

func (s *Space) Decode(id uint64) (Setting, error) {
	if id >= s.count {
		return nil, ErrOutOfRange
	}
	return s.decode(id), nil
}

func (s *Space) decode(id uint64) Setting {
	setting := make(Setting, len(s.axes))
	for i, axis := range s.axes {
		n := uint64(len(axis))
		setting[i] = axis[id%n]
		id /= n
	}
	return setting
}
