// Package candidate provides the fixed-length flag array the sieve marks.
//
// A Set holds one flag per integer in [0, n). A true flag means the index has
// not yet been proven composite. Flags only ever move from true to false; the
// only way back is Fill, which the engine calls on reset.
//
// Set is NOT safe for concurrent use. The engine owns exactly one Set and
// serializes every access to it.
package candidate

// Set is a fixed-length sequence of candidate flags.
type Set struct {
	flags []bool
}

// New creates a Set of length n with every flag set.
// A negative n is treated as zero.
func New(n int) *Set {
	if n < 0 {
		n = 0
	}
	s := &Set{flags: make([]bool, n)}
	s.Fill()
	return s
}

// Fill sets every flag back to true.
func (s *Set) Fill() {
	for i := range s.flags {
		s.flags[i] = true
	}
}

// Get reports the flag at i. Out-of-range indices report false.
func (s *Set) Get(i int) bool {
	if i < 0 || i >= len(s.flags) {
		return false
	}
	return s.flags[i]
}

// Clear marks i as not a candidate. Out-of-range indices are ignored.
// Returns true if the flag changed.
func (s *Set) Clear(i int) bool {
	if i < 0 || i >= len(s.flags) || !s.flags[i] {
		return false
	}
	s.flags[i] = false
	return true
}

// NextCandidate returns the first index >= from whose flag is still set.
// Returns (0, false) if no flag at or after from is set.
func (s *Set) NextCandidate(from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(s.flags); i++ {
		if s.flags[i] {
			return i, true
		}
	}
	return 0, false
}

// Count returns the number of set flags in [0, upto).
// upto is clamped to the set's size.
func (s *Set) Count(upto int) int {
	if upto > len(s.flags) {
		upto = len(s.flags)
	}
	n := 0
	for i := 0; i < upto; i++ {
		if s.flags[i] {
			n++
		}
	}
	return n
}

// Indices returns every set index in [0, upto), in ascending order.
// upto is clamped to the set's size.
func (s *Set) Indices(upto int) []int {
	if upto > len(s.flags) {
		upto = len(s.flags)
	}
	out := make([]int, 0)
	for i := 0; i < upto; i++ {
		if s.flags[i] {
			out = append(out, i)
		}
	}
	return out
}
